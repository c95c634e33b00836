package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Activity struct {
	UserID        string    `json:"user_id"`
	LastMessageAt time.Time `json:"last_message_at"`
	LastCheckinAt time.Time `json:"last_checkin_at,omitzero"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Touch records an inbound message for the user. The check-in timestamp is
// left alone so the cooldown survives new activity.
func (s *Store) Touch(ctx context.Context, userID string) error {
	now := formatTime(s.nowFn())
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_activity (user_id, last_message_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET last_message_at = excluded.last_message_at, updated_at = excluded.updated_at`,
		userID, now, now)
	if err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	return nil
}

// MarkCheckin stamps the last check-in time for the user, creating the
// activity row if the user has never messaged.
func (s *Store) MarkCheckin(ctx context.Context, userID string) error {
	now := formatTime(s.nowFn())
	_, err := s.db.ExecContext(ctx, `INSERT INTO user_activity (user_id, last_message_at, last_checkin_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET last_checkin_at = excluded.last_checkin_at, updated_at = excluded.updated_at`,
		userID, now, now, now)
	if err != nil {
		return fmt.Errorf("mark checkin: %w", err)
	}
	return nil
}

func (s *Store) ListActivity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, last_message_at, last_checkin_at, updated_at FROM user_activity ORDER BY last_message_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var lastMessageStr, updatedAtStr string
		var lastCheckinStr sql.NullString
		if err := rows.Scan(&a.UserID, &lastMessageStr, &lastCheckinStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.LastMessageAt = parseTime(lastMessageStr)
		a.LastCheckinAt = parseNullTime(lastCheckinStr)
		a.UpdatedAt = parseTime(updatedAtStr)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity: %w", err)
	}
	return out, nil
}
