package coke

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cokehq/coke-agents/internal/agent"
	"github.com/cokehq/coke-agents/internal/ai"
	"github.com/cokehq/coke-agents/internal/scheduler"
	"github.com/cokehq/coke-agents/internal/state"
)

// FallbackChatResponse is the reply used when no response could be
// generated, LLM disabled included.
const FallbackChatResponse = "Sorry, I don't know what to say right now..."

// FallbackCheckinText is the canned check-in used when generation fails.
const FallbackCheckinText = "hey, what are you up to?"

const chatHistoryTurns = 5

const checkinHistoryTurns = 3

// Service runs the conversational flows: the chat turn itself and the
// proactive text generation the runner and pull API ask for. A nil client
// degrades every flow to its deterministic fallback.
type Service struct {
	client *ai.Client
	store  *state.Store
	sched  *scheduler.Scheduler
	nowFn  func() time.Time
}

type ServiceOption func(*Service)

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

func NewService(client *ai.Client, store *state.Store, sched *scheduler.Scheduler, opts ...ServiceOption) *Service {
	s := &Service{
		client: client,
		store:  store,
		sched:  sched,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ChatResult struct {
	Response        string   `json:"response"`
	Parts           []string `json:"responses"`
	ReminderCreated bool     `json:"reminder_created"`
	ReminderID      string   `json:"reminder_id,omitempty"`
}

// Chat handles one user message end to end: reply generation, conversation
// and activity bookkeeping, and reminder creation when the reply extracted
// one. Storage hiccups after a reply exists are logged, not returned, so the
// user still gets the reply.
func (s *Service) Chat(ctx context.Context, userID, message string) (ChatResult, error) {
	history, err := s.history(ctx, userID, chatHistoryTurns)
	if err != nil {
		return ChatResult{}, err
	}

	ec := agent.Context{
		"user_message": message,
		"user_id":      userID,
		"current_time": s.nowFn().Format("2006-01-02 15:04:05"),
	}
	if history != "" {
		ec["conversation_history"] = history
	}

	response := ""
	if s.client != nil {
		for snap := range agent.NewEngine().Run(ctx, &ChatUnit{Client: s.client}, ec) {
			if snap.Status == agent.StatusMessage || snap.Status == agent.StatusFinished {
				if v := snap.Context.GetString("coke_response"); v != "" {
					response = v
				}
			}
		}
	}
	if response == "" {
		response = ec.GetString("coke_response")
	}
	if response == "" {
		response = FallbackChatResponse
	}

	if _, err := s.store.AppendTurn(ctx, userID, message, response); err != nil {
		log.Printf("append turn for %s: %v", userID, err)
	}
	if err := s.store.Touch(ctx, userID); err != nil {
		log.Printf("touch activity for %s: %v", userID, err)
	}

	result := ChatResult{Response: response, Parts: SplitMessage(response)}
	if s.sched != nil && ec.GetBool("needs_reminder") {
		task := ec.GetString("task_description")
		duration := ec.GetInt("task_duration_minutes")
		if task != "" && duration > 0 {
			reminder, err := s.sched.CreateReminder(ctx, userID, task, duration)
			if err != nil {
				log.Printf("create reminder for %s: %v", userID, err)
			} else {
				result.ReminderCreated = true
				result.ReminderID = reminder.ID
				log.Printf("reminder %s created for %s: %s in %d min", reminder.ID, userID, task, duration)
			}
		}
	}
	return result, nil
}

// ReminderMessage generates the text for a due reminder using recent
// conversation context. An empty return tells the runner to use its
// deterministic fallback.
func (s *Service) ReminderMessage(ctx context.Context, userID, taskDescription string) (string, error) {
	if s.client == nil {
		return "", nil
	}
	history, err := s.history(ctx, userID, chatHistoryTurns)
	if err != nil {
		return "", err
	}

	ec := agent.Context{"task_description": taskDescription}
	if history != "" {
		ec["conversation_history"] = history
	}
	for snap := range agent.NewEngine().Run(ctx, NewReminderUnit(s.client), ec) {
		if snap.Status == agent.StatusFinished {
			break
		}
	}
	return ec.GetString("reminder_message"), nil
}

// CheckinMessage generates check-in text at retrieval time, picking up the
// last task the user mentioned if there is one.
func (s *Service) CheckinMessage(ctx context.Context, userID string) string {
	if s.client == nil {
		return FallbackCheckinText
	}
	turns, err := s.store.RecentTurns(ctx, userID, checkinHistoryTurns)
	if err != nil {
		log.Printf("checkin history for %s: %v", userID, err)
		return FallbackCheckinText
	}

	ec := agent.NewContext()
	if history := FormatHistory(turns); history != "" {
		ec["conversation_history"] = history
	}
	if task := LastTask(turns); task != "" {
		ec["last_task"] = task
	}
	for snap := range agent.NewEngine().Run(ctx, NewCheckinUnit(s.client), ec) {
		if snap.Status == agent.StatusFinished {
			break
		}
	}
	if message := ec.GetString("checkin_message"); message != "" {
		return message
	}
	return FallbackCheckinText
}

func (s *Service) history(ctx context.Context, userID string, limit int) (string, error) {
	turns, err := s.store.RecentTurns(ctx, userID, limit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	return FormatHistory(turns), nil
}

// FormatHistory renders turns oldest first, the shape the prompt templates
// show the model.
func FormatHistory(turns []state.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("User: %s\nCoke: %s", t.UserMessage, t.AssistantMessage))
	}
	return strings.Join(lines, "\n")
}

var taskKeywords = []string{"study", "learn", "work", "write", "read", "practice", "finish", "homework", "exam"}

// LastTask scans turns newest first for a user message that sounds like a
// task, a cheap heuristic for check-in framing.
func LastTask(turns []state.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		lower := strings.ToLower(turns[i].UserMessage)
		for _, kw := range taskKeywords {
			if strings.Contains(lower, kw) {
				return turns[i].UserMessage
			}
		}
	}
	return ""
}
