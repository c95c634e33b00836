package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cokehq/coke-agents/internal/state"
)

// MessageGenerator produces reminder text at promotion time. Implementations
// may call an LLM; the runner substitutes a deterministic fallback when
// generation fails.
type MessageGenerator interface {
	ReminderMessage(ctx context.Context, userID, taskDescription string) (string, error)
}

// Delivery is one promoted item waiting to be picked up by a client. Items
// live only in memory: a restart drops undelivered items, while the backing
// reminder record is already marked sent.
type Delivery struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ReminderID      string    `json:"reminder_id,omitempty"`
	TaskDescription string    `json:"task_description"`
	Message         string    `json:"message"`
	IsCheckin       bool      `json:"is_checkin"`
	CreatedAt       time.Time `json:"created_at"`

	firstRetrievedAt time.Time
}

// Status is a point-in-time dump of the runner for the debug endpoint.
type Status struct {
	Running      bool       `json:"running"`
	Checks       int        `json:"checks"`
	LastCheckAt  time.Time  `json:"last_check_at,omitzero"`
	PendingCount int        `json:"pending_count"`
	Pending      []Delivery `json:"pending"`
}

// Runner is the background loop: every interval it promotes due reminders
// into the delivery set and books check-ins for inactive users. A second
// runner instance against the same store would race DueReminders between
// the due check and MarkSent; one runner per store is assumed.
type Runner struct {
	scheduler *Scheduler
	store     *state.Store
	gen       MessageGenerator

	interval        time.Duration
	inactiveAfter   time.Duration
	checkinCooldown time.Duration
	retrievalGrace  time.Duration
	nowFn           func() time.Time

	mu      sync.Mutex
	pending []*Delivery
	subs    map[string]chan Delivery
	checks  int
	lastRun time.Time
	running bool

	stop chan struct{}
	done chan struct{}
}

type RunnerOption func(*Runner)

func WithInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithInactiveAfter(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.inactiveAfter = d
		}
	}
}

func WithCheckinCooldown(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.checkinCooldown = d
		}
	}
}

func WithRetrievalGrace(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.retrievalGrace = d
		}
	}
}

func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.nowFn = now
		}
	}
}

func NewRunner(scheduler *Scheduler, store *state.Store, gen MessageGenerator, opts ...RunnerOption) *Runner {
	r := &Runner{
		scheduler:       scheduler,
		store:           store,
		gen:             gen,
		interval:        30 * time.Second,
		inactiveAfter:   4 * time.Hour,
		checkinCooldown: time.Hour,
		retrievalGrace:  60 * time.Second,
		nowFn:           func() time.Time { return time.Now().UTC() },
		subs:            map[string]chan Delivery{},
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.loop()
	log.Printf("reminder runner started (checking every %s)", r.interval)
}

// Stop ends the loop and waits for the in-flight iteration, bounded so a
// stuck generation call cannot hang shutdown.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stop)
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		log.Printf("reminder runner stop timed out")
	}
}

func (r *Runner) loop() {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.RunOnce(context.Background())
		}
	}
}

// RunOnce performs one background check. It is exported for the manual
// trigger endpoint. A panic in one iteration is logged, not fatal.
func (r *Runner) RunOnce(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("reminder check panicked: %v", rec)
		}
	}()

	r.mu.Lock()
	r.checks++
	check := r.checks
	r.lastRun = r.nowFn()
	r.mu.Unlock()

	if err := r.promoteDue(ctx); err != nil {
		log.Printf("reminder check #%d: promote due: %v", check, err)
	}
	if err := r.scanInactive(ctx); err != nil {
		log.Printf("reminder check #%d: scan inactive: %v", check, err)
	}
}

func (r *Runner) promoteDue(ctx context.Context) error {
	due, err := r.scheduler.DueReminders(ctx)
	if err != nil {
		return err
	}
	for _, reminder := range due {
		message := r.deliveryText(ctx, reminder)
		r.publish(&Delivery{
			ID:              ulid.Make().String(),
			UserID:          reminder.UserID,
			ReminderID:      reminder.ID,
			TaskDescription: reminder.TaskDescription,
			Message:         message,
			CreatedAt:       r.nowFn(),
		})
		if _, err := r.scheduler.MarkSent(ctx, reminder.ID); err != nil {
			log.Printf("mark reminder %s sent: %v", reminder.ID, err)
			continue
		}
		log.Printf("reminder due for %s: %s", reminder.UserID, reminder.TaskDescription)
	}
	return nil
}

// deliveryText reuses text already on the record; generation only runs for
// reminders whose message is still empty.
func (r *Runner) deliveryText(ctx context.Context, reminder state.Reminder) string {
	if reminder.Message != "" {
		return reminder.Message
	}
	return r.reminderText(ctx, reminder)
}

func (r *Runner) reminderText(ctx context.Context, reminder state.Reminder) string {
	if r.gen != nil {
		message, err := r.gen.ReminderMessage(ctx, reminder.UserID, reminder.TaskDescription)
		if err == nil && message != "" {
			return message
		}
		if err != nil {
			log.Printf("generate reminder message: %v", err)
		}
	}
	return FallbackReminderText(reminder.TaskDescription)
}

// FallbackReminderText is the deterministic reminder used when generation is
// unavailable or fails.
func FallbackReminderText(taskDescription string) string {
	return fmt.Sprintf("Hey, how is it going with %s? Done yet?", taskDescription)
}

func (r *Runner) scanInactive(ctx context.Context) error {
	activity, err := r.store.ListActivity(ctx, 1000)
	if err != nil {
		return err
	}
	now := r.nowFn()
	inactiveCutoff := now.Add(-r.inactiveAfter)
	cooldownCutoff := now.Add(-r.checkinCooldown)
	for _, a := range activity {
		if a.LastMessageAt.After(inactiveCutoff) {
			continue
		}
		if !a.LastCheckinAt.IsZero() && a.LastCheckinAt.After(cooldownCutoff) {
			continue
		}
		// Stamp the cooldown before publishing so a failure below cannot
		// cause a check-in storm on the next iteration.
		if err := r.store.MarkCheckin(ctx, a.UserID); err != nil {
			log.Printf("mark checkin for %s: %v", a.UserID, err)
			continue
		}
		r.publish(&Delivery{
			ID:              ulid.Make().String(),
			UserID:          a.UserID,
			TaskDescription: "check-in",
			IsCheckin:       true,
			CreatedAt:       now,
		})
		log.Printf("check-in booked for inactive user %s", a.UserID)
	}
	return nil
}

func (r *Runner) publish(d *Delivery) {
	r.mu.Lock()
	r.pending = append(r.pending, d)
	for _, ch := range r.subs {
		select {
		case ch <- *d:
		default:
		}
	}
	r.mu.Unlock()
}

// PendingForUser returns the user's waiting deliveries. Each item's first
// retrieval starts its expiry clock; items older than the retrieval grace
// are swept on every call, while never-retrieved items wait indefinitely.
// Callers get copies.
func (r *Runner) PendingForUser(userID string) []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFn()
	kept := r.pending[:0]
	for _, d := range r.pending {
		if !d.firstRetrievedAt.IsZero() && now.Sub(d.firstRetrievedAt) > r.retrievalGrace {
			log.Printf("delivery %s for %s expired after retrieval", d.ID, d.UserID)
			continue
		}
		kept = append(kept, d)
	}
	r.pending = kept

	var out []Delivery
	for _, d := range r.pending {
		if d.UserID != userID {
			continue
		}
		if d.firstRetrievedAt.IsZero() {
			d.firstRetrievedAt = now
		}
		out = append(out, *d)
	}
	return out
}

// AttachMessage sets the text on a waiting delivery, used for check-in items
// whose message is generated at retrieval time.
func (r *Runner) AttachMessage(id, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.pending {
		if d.ID == id {
			d.Message = message
			return true
		}
	}
	return false
}

// Subscribe registers a feed of promoted deliveries. The channel is dropped,
// not blocked, when the subscriber falls behind.
func (r *Runner) Subscribe() (string, <-chan Delivery, func()) {
	id := ulid.Make().String()
	ch := make(chan Delivery, 16)
	r.mu.Lock()
	r.subs[id] = ch
	r.mu.Unlock()
	cancel := func() {
		r.mu.Lock()
		if existing, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(existing)
		}
		r.mu.Unlock()
	}
	return id, ch, cancel
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Status{
		Running:      r.running,
		Checks:       r.checks,
		LastCheckAt:  r.lastRun,
		PendingCount: len(r.pending),
		Pending:      make([]Delivery, 0, len(r.pending)),
	}
	for _, d := range r.pending {
		s.Pending = append(s.Pending, *d)
	}
	return s
}
