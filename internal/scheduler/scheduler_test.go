package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/cokehq/coke-agents/internal/scheduler"
	"github.com/cokehq/coke-agents/internal/state"
	"github.com/cokehq/coke-agents/internal/testutil"
)

func TestDueRemindersRespectsDueTime(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := state.NewStore(db, state.WithClock(clock))
	sched := scheduler.NewScheduler(store, scheduler.WithClock(clock))
	ctx := context.Background()

	if _, err := sched.CreateReminder(ctx, "u1", "write the report", 30); err != nil {
		t.Fatalf("create: %v", err)
	}

	now = now.Add(29 * time.Minute)
	due, err := sched.DueReminders(ctx)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected nothing due at +29m, got %d", len(due))
	}

	now = now.Add(2 * time.Minute)
	due, err = sched.DueReminders(ctx)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 1 || due[0].TaskDescription != "write the report" {
		t.Fatalf("expected reminder due at +31m, got %+v", due)
	}

	if _, err := sched.MarkSent(ctx, due[0].ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	due, err = sched.DueReminders(ctx)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("sent reminder must not come due again, got %d", len(due))
	}
}

func TestZeroDurationIsImmediatelyDue(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := state.NewStore(db, state.WithClock(clock))
	sched := scheduler.NewScheduler(store, scheduler.WithClock(clock))
	ctx := context.Background()

	if _, err := sched.CreateReminder(ctx, "u1", "right now", 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := sched.CreateReminder(ctx, "u1", "already late", -5); err != nil {
		t.Fatalf("create: %v", err)
	}

	due, err := sched.DueReminders(ctx)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("zero and negative durations must be due immediately, got %d", len(due))
	}
}
