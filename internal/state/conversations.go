package state

import (
	"context"
	"fmt"
	"time"
)

type Turn struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	UserMessage      string    `json:"user"`
	AssistantMessage string    `json:"coke"`
	CreatedAt        time.Time `json:"timestamp"`
}

func (s *Store) AppendTurn(ctx context.Context, userID, userMessage, assistantMessage string) (Turn, error) {
	t := Turn{
		ID:               s.newIDFn(),
		UserID:           userID,
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		CreatedAt:        s.nowFn(),
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO conversations (id, user_id, user_message, assistant_message, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.UserMessage, t.AssistantMessage, formatTime(t.CreatedAt))
	if err != nil {
		return Turn{}, fmt.Errorf("insert turn: %w", err)
	}
	return t, nil
}

// RecentTurns returns the user's latest turns ordered oldest first, the
// order prompts expect conversation history in.
func (s *Store) RecentTurns(ctx context.Context, userID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, user_message, assistant_message, created_at FROM conversations WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		var createdAtStr string
		if err := rows.Scan(&t.ID, &t.UserID, &t.UserMessage, &t.AssistantMessage, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.CreatedAt = parseTime(createdAtStr)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Store) ClearUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear conversations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear conversations: %w", err)
	}
	return n, nil
}
