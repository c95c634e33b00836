package state

import (
	"database/sql"
	"time"

	"github.com/cokehq/coke-agents/internal/idgen"
)

// Store holds the typed persistence operations over one sqlite handle.
type Store struct {
	db      *sql.DB
	nowFn   func() time.Time
	newIDFn func() string
}

type StoreOption func(*Store)

// WithClock injects the time source, used by tests to control due times and
// inactivity windows.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func WithIDGenerator(newID func() string) StoreOption {
	return func(s *Store) {
		if newID != nil {
			s.newIDFn = newID
		}
	}
}

func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:      db,
		nowFn:   func() time.Time { return time.Now().UTC() },
		newIDFn: idgen.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func parseNullTime(v sql.NullString) time.Time {
	if !v.Valid || v.String == "" {
		return time.Time{}
	}
	return parseTime(v.String)
}
