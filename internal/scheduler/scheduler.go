package scheduler

import (
	"context"
	"time"

	"github.com/cokehq/coke-agents/internal/state"
)

// Scheduler owns reminder timing: it books reminders relative to now and
// decides which pending reminders are due.
type Scheduler struct {
	store *state.Store
	nowFn func() time.Time
}

type SchedulerOption func(*Scheduler)

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func NewScheduler(store *state.Store, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store: store,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateReminder books a reminder durationMinutes from now. A zero or
// negative duration books it in the past, which makes it due on the next
// background check rather than being an error.
func (s *Scheduler) CreateReminder(ctx context.Context, userID, taskDescription string, durationMinutes int) (state.Reminder, error) {
	remindAt := s.nowFn().Add(time.Duration(durationMinutes) * time.Minute)
	return s.store.CreateReminder(ctx, userID, taskDescription, remindAt)
}

// DueReminders returns pending reminders whose remind time has passed,
// scanning the most recent pending page.
func (s *Scheduler) DueReminders(ctx context.Context) ([]state.Reminder, error) {
	pending, err := s.store.ListPending(ctx, 100)
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	var due []state.Reminder
	for _, r := range pending {
		if !r.RemindAt.After(now) {
			due = append(due, r)
		}
	}
	return due, nil
}

func (s *Scheduler) MarkSent(ctx context.Context, id string) (bool, error) {
	return s.store.MarkSent(ctx, id)
}

func (s *Scheduler) PendingForUser(ctx context.Context, userID string) ([]state.Reminder, error) {
	return s.store.ListPendingForUser(ctx, userID)
}
