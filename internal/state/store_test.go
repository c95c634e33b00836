package state_test

import (
	"context"
	"testing"
	"time"

	"github.com/cokehq/coke-agents/internal/state"
	"github.com/cokehq/coke-agents/internal/testutil"
)

func TestReminderLifecycle(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := state.NewStore(db, state.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	r, err := store.CreateReminder(ctx, "u1", "study for the exam", now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("create reminder: %v", err)
	}
	if r.Status != state.ReminderPending {
		t.Fatalf("unexpected status %q", r.Status)
	}

	pending, err := store.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != r.ID {
		t.Fatalf("unexpected pending list: %+v", pending)
	}
	if !pending[0].RemindAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("remind_at round trip: %v", pending[0].RemindAt)
	}

	changed, err := store.MarkSent(ctx, r.ID)
	if err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if !changed {
		t.Fatalf("expected first mark sent to apply")
	}
	changed, err = store.MarkSent(ctx, r.ID)
	if err != nil {
		t.Fatalf("mark sent again: %v", err)
	}
	if changed {
		t.Fatalf("mark sent must be idempotent")
	}

	pending, err = store.ListPending(ctx, 0)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending after sent, got %d", len(pending))
	}

	all, err := store.ListReminders(ctx, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 || all[0].Status != state.ReminderSent || all[0].SentAt.IsZero() {
		t.Fatalf("unexpected reminder after sent: %+v", all)
	}
}

func TestListPendingForUser(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	store := state.NewStore(db)
	ctx := context.Background()
	if _, err := store.CreateReminder(ctx, "u1", "task a", time.Now()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateReminder(ctx, "u2", "task b", time.Now()); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.ListPendingForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(got) != 1 || got[0].TaskDescription != "task a" {
		t.Fatalf("unexpected reminders: %+v", got)
	}
}

func TestTouchPreservesCheckin(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := state.NewStore(db, state.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	if err := store.Touch(ctx, "u1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if err := store.MarkCheckin(ctx, "u1"); err != nil {
		t.Fatalf("mark checkin: %v", err)
	}

	checkinAt := now
	now = now.Add(2 * time.Hour)
	if err := store.Touch(ctx, "u1"); err != nil {
		t.Fatalf("touch again: %v", err)
	}

	activity, err := store.ListActivity(ctx, 0)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(activity) != 1 {
		t.Fatalf("expected one activity row, got %d", len(activity))
	}
	if !activity[0].LastMessageAt.Equal(checkinAt.Add(2 * time.Hour)) {
		t.Fatalf("last message not advanced: %v", activity[0].LastMessageAt)
	}
	if !activity[0].LastCheckinAt.Equal(checkinAt) {
		t.Fatalf("touch must not clear last check-in: %v", activity[0].LastCheckinAt)
	}
}

func TestMarkCheckinWithoutPriorActivity(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	store := state.NewStore(db)
	if err := store.MarkCheckin(context.Background(), "u9"); err != nil {
		t.Fatalf("mark checkin: %v", err)
	}
	activity, err := store.ListActivity(context.Background(), 0)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(activity) != 1 || activity[0].LastCheckinAt.IsZero() {
		t.Fatalf("expected created row with check-in stamp: %+v", activity)
	}
}

func TestRecentTurnsOldestFirst(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := state.NewStore(db, state.WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three", "four"} {
		if _, err := store.AppendTurn(ctx, "u1", msg, "reply to "+msg); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	turns, err := store.RecentTurns(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].UserMessage != "two" || turns[2].UserMessage != "four" {
		t.Fatalf("expected oldest-first window, got %+v", turns)
	}
}

func TestClearUser(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	store := state.NewStore(db)
	ctx := context.Background()
	if _, err := store.AppendTurn(ctx, "u1", "hi", "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendTurn(ctx, "u2", "hi", "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}

	n, err := store.ClearUser(ctx, "u1")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	turns, err := store.RecentTurns(ctx, "u2", 5)
	if err != nil {
		t.Fatalf("recent turns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("other users must be untouched, got %d", len(turns))
	}
}
