package scheduler_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cokehq/coke-agents/internal/scheduler"
	"github.com/cokehq/coke-agents/internal/state"
	"github.com/cokehq/coke-agents/internal/testutil"
)

type scriptedGenerator struct {
	message string
	err     error
	calls   int
}

func (g *scriptedGenerator) ReminderMessage(ctx context.Context, userID, taskDescription string) (string, error) {
	g.calls++
	return g.message, g.err
}

type runnerFixture struct {
	db     *sql.DB
	store  *state.Store
	sched  *scheduler.Scheduler
	runner *scheduler.Runner
	now    *time.Time
}

func newRunnerFixture(t *testing.T, gen scheduler.MessageGenerator) (*runnerFixture, func()) {
	t.Helper()
	db, cleanup := testutil.OpenTestDB(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := state.NewStore(db, state.WithClock(clock))
	sched := scheduler.NewScheduler(store, scheduler.WithClock(clock))
	runner := scheduler.NewRunner(sched, store, gen, scheduler.WithRunnerClock(clock))
	return &runnerFixture{db: db, store: store, sched: sched, runner: runner, now: &now}, cleanup
}

func TestRunOncePromotesDueReminder(t *testing.T) {
	gen := &scriptedGenerator{message: "hey<newline>report done yet?"}
	f, cleanup := newRunnerFixture(t, gen)
	defer cleanup()
	ctx := context.Background()

	if _, err := f.sched.CreateReminder(ctx, "u1", "write the report", 10); err != nil {
		t.Fatalf("create: %v", err)
	}

	f.runner.RunOnce(ctx)
	if got := f.runner.PendingForUser("u1"); len(got) != 0 {
		t.Fatalf("nothing should be promoted before due time, got %+v", got)
	}

	*f.now = f.now.Add(11 * time.Minute)
	f.runner.RunOnce(ctx)

	got := f.runner.PendingForUser("u1")
	if len(got) != 1 {
		t.Fatalf("expected one delivery, got %d", len(got))
	}
	if got[0].Message != "hey<newline>report done yet?" {
		t.Fatalf("unexpected message: %q", got[0].Message)
	}
	if got[0].IsCheckin {
		t.Fatalf("reminder delivery must not be a check-in")
	}
	if gen.calls != 1 {
		t.Fatalf("expected one generation call, got %d", gen.calls)
	}

	// The backing record is already sent, so another check promotes nothing.
	f.runner.RunOnce(ctx)
	status := f.runner.Status()
	if status.PendingCount != 1 {
		t.Fatalf("expected no duplicate promotion, pending=%d", status.PendingCount)
	}
}

func TestRunOnceFallbackEmbedsTask(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("backend down")}
	f, cleanup := newRunnerFixture(t, gen)
	defer cleanup()
	ctx := context.Background()

	if _, err := f.sched.CreateReminder(ctx, "u1", "practice piano", 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.runner.RunOnce(ctx)

	got := f.runner.PendingForUser("u1")
	if len(got) != 1 {
		t.Fatalf("expected one delivery, got %d", len(got))
	}
	if !strings.Contains(got[0].Message, "practice piano") {
		t.Fatalf("fallback must embed the task, got %q", got[0].Message)
	}
}

func TestRunOnceBooksCheckinForInactiveUser(t *testing.T) {
	f, cleanup := newRunnerFixture(t, nil)
	defer cleanup()
	ctx := context.Background()

	if err := f.store.Touch(ctx, "u1"); err != nil {
		t.Fatalf("touch: %v", err)
	}

	*f.now = f.now.Add(3 * time.Hour)
	f.runner.RunOnce(ctx)
	if got := f.runner.PendingForUser("u1"); len(got) != 0 {
		t.Fatalf("active user must not get a check-in, got %+v", got)
	}

	*f.now = f.now.Add(2 * time.Hour)
	f.runner.RunOnce(ctx)
	got := f.runner.PendingForUser("u1")
	if len(got) != 1 || !got[0].IsCheckin {
		t.Fatalf("expected one check-in delivery, got %+v", got)
	}
	if got[0].Message != "" {
		t.Fatalf("check-in text is generated at retrieval time, got %q", got[0].Message)
	}

	// Within the cooldown no second check-in is booked.
	*f.now = f.now.Add(30 * time.Minute)
	f.runner.RunOnce(ctx)
	if status := f.runner.Status(); status.PendingCount != 1 {
		t.Fatalf("cooldown must suppress repeat check-ins, pending=%d", status.PendingCount)
	}

	// Past the cooldown, still inactive, a new one is booked.
	*f.now = f.now.Add(31 * time.Minute)
	f.runner.RunOnce(ctx)
	if status := f.runner.Status(); status.PendingCount != 2 {
		t.Fatalf("expected a new check-in after cooldown, pending=%d", status.PendingCount)
	}
}

func TestPendingForUserExpiryFromFirstRetrieval(t *testing.T) {
	f, cleanup := newRunnerFixture(t, &scriptedGenerator{message: "ping"})
	defer cleanup()
	ctx := context.Background()

	if _, err := f.sched.CreateReminder(ctx, "u1", "task a", 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.sched.CreateReminder(ctx, "u2", "task b", 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.runner.RunOnce(ctx)

	// u1 retrieves; u2 never does.
	if got := f.runner.PendingForUser("u1"); len(got) != 1 {
		t.Fatalf("expected u1 delivery, got %d", len(got))
	}

	// Within the grace window the item is returned again.
	*f.now = f.now.Add(30 * time.Second)
	if got := f.runner.PendingForUser("u1"); len(got) != 1 {
		t.Fatalf("expected repeat delivery inside grace window, got %d", len(got))
	}

	// Past the grace window (from FIRST retrieval) the item is swept.
	*f.now = f.now.Add(45 * time.Second)
	if got := f.runner.PendingForUser("u1"); len(got) != 0 {
		t.Fatalf("expected delivery expired, got %d", len(got))
	}

	// The never-retrieved item for u2 is still waiting.
	if got := f.runner.PendingForUser("u2"); len(got) != 1 {
		t.Fatalf("never-retrieved items must not expire, got %d", len(got))
	}
}

func TestPendingForUserReturnsCopies(t *testing.T) {
	f, cleanup := newRunnerFixture(t, &scriptedGenerator{message: "ping"})
	defer cleanup()
	ctx := context.Background()

	if _, err := f.sched.CreateReminder(ctx, "u1", "task a", 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.runner.RunOnce(ctx)

	got := f.runner.PendingForUser("u1")
	got[0].Message = "mutated"
	again := f.runner.PendingForUser("u1")
	if again[0].Message != "ping" {
		t.Fatalf("caller mutation must not leak into the runner, got %q", again[0].Message)
	}
}

func TestAttachMessage(t *testing.T) {
	f, cleanup := newRunnerFixture(t, nil)
	defer cleanup()
	ctx := context.Background()

	if err := f.store.Touch(ctx, "u1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	*f.now = f.now.Add(5 * time.Hour)
	f.runner.RunOnce(ctx)

	got := f.runner.PendingForUser("u1")
	if len(got) != 1 {
		t.Fatalf("expected one check-in, got %d", len(got))
	}
	if !f.runner.AttachMessage(got[0].ID, "hey, how is studying going?") {
		t.Fatalf("attach must find the delivery")
	}
	again := f.runner.PendingForUser("u1")
	if again[0].Message != "hey, how is studying going?" {
		t.Fatalf("attached message missing: %q", again[0].Message)
	}
	if f.runner.AttachMessage("missing-id", "x") {
		t.Fatalf("attach must report unknown ids")
	}
}

func TestSubscribeReceivesPromotions(t *testing.T) {
	f, cleanup := newRunnerFixture(t, &scriptedGenerator{message: "ping"})
	defer cleanup()
	ctx := context.Background()

	_, ch, cancel := f.runner.Subscribe()
	defer cancel()

	if _, err := f.sched.CreateReminder(ctx, "u1", "task a", 0); err != nil {
		t.Fatalf("create: %v", err)
	}
	f.runner.RunOnce(ctx)

	select {
	case d := <-ch:
		if d.UserID != "u1" || d.Message != "ping" {
			t.Fatalf("unexpected feed item: %+v", d)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a feed item")
	}
}
