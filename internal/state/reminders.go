package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	ReminderPending = "pending"
	ReminderSent    = "sent"
)

type Reminder struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	TaskDescription string    `json:"task_description"`
	RemindAt        time.Time `json:"remind_at"`
	CreatedAt       time.Time `json:"created_at"`
	Status          string    `json:"status"`
	Message         string    `json:"message,omitempty"`
	SentAt          time.Time `json:"sent_at,omitzero"`
}

// CreateReminder stores a pending reminder. The message stays empty until
// the reminder comes due and text is generated for it.
func (s *Store) CreateReminder(ctx context.Context, userID, taskDescription string, remindAt time.Time) (Reminder, error) {
	r := Reminder{
		ID:              s.newIDFn(),
		UserID:          userID,
		TaskDescription: taskDescription,
		RemindAt:        remindAt.UTC(),
		CreatedAt:       s.nowFn(),
		Status:          ReminderPending,
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO reminders (id, user_id, task_description, remind_at, created_at, status, message) VALUES (?, ?, ?, ?, ?, ?, '')`,
		r.ID, r.UserID, r.TaskDescription, formatTime(r.RemindAt), formatTime(r.CreatedAt), r.Status)
	if err != nil {
		return Reminder{}, fmt.Errorf("insert reminder: %w", err)
	}
	return r, nil
}

// ListPending returns the most recently created pending reminders.
func (s *Store) ListPending(ctx context.Context, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryReminders(ctx, `SELECT id, user_id, task_description, remind_at, created_at, status, message, sent_at FROM reminders WHERE status = ? ORDER BY created_at DESC LIMIT ?`,
		ReminderPending, limit)
}

func (s *Store) ListPendingForUser(ctx context.Context, userID string) ([]Reminder, error) {
	return s.queryReminders(ctx, `SELECT id, user_id, task_description, remind_at, created_at, status, message, sent_at FROM reminders WHERE user_id = ? AND status = ? ORDER BY created_at DESC`,
		userID, ReminderPending)
}

func (s *Store) ListReminders(ctx context.Context, limit int) ([]Reminder, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryReminders(ctx, `SELECT id, user_id, task_description, remind_at, created_at, status, message, sent_at FROM reminders ORDER BY created_at DESC LIMIT ?`, limit)
}

// MarkSent transitions a pending reminder to sent. The status guard makes
// the call idempotent: a reminder already sent reports false without error.
func (s *Store) MarkSent(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE reminders SET status = ?, sent_at = ? WHERE id = ? AND status = ?`,
		ReminderSent, formatTime(s.nowFn()), id, ReminderPending)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return n > 0, nil
}

func (s *Store) queryReminders(ctx context.Context, query string, args ...any) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var remindAtStr, createdAtStr string
		var sentAtStr sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.TaskDescription, &remindAtStr, &createdAtStr, &r.Status, &r.Message, &sentAtStr); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		r.RemindAt = parseTime(remindAtStr)
		r.CreatedAt = parseTime(createdAtStr)
		r.SentAt = parseNullTime(sentAtStr)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminders: %w", err)
	}
	return out, nil
}
