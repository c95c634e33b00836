package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cokehq/coke-agents/internal/coke"
	"github.com/cokehq/coke-agents/internal/scheduler"
	"github.com/cokehq/coke-agents/internal/state"
)

const defaultUserID = "demo_user"

type Server struct {
	Service   *coke.Service
	Store     *state.Store
	Scheduler *scheduler.Scheduler
	Runner    *scheduler.Runner
	StartedAt time.Time
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/clear", s.handleClear)
	mux.HandleFunc("/api/reminders/pending", s.handleRemindersPending)
	mux.HandleFunc("/api/reminders/check", s.handleRemindersCheck)
	mux.HandleFunc("/api/reminders/check/trigger", s.handleRemindersTrigger)
	mux.HandleFunc("/api/reminders/debug", s.handleRemindersDebug)
	mux.HandleFunc("/api/feed/ws", s.handleFeedWS)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"time":       time.Now().UTC(),
		"started_at": s.StartedAt,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var payload struct {
		Message string `json:"message"`
		UserID  string `json:"user_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Message == "" {
		writeError(w, http.StatusBadRequest, errBadRequest("message is required"))
		return
	}
	result, err := s.Service.Chat(r.Context(), userOrDefault(payload.UserID), payload.Message)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"responses":        result.Parts,
		"status":           "success",
		"reminder_created": result.ReminderCreated,
		"reminder_id":      result.ReminderID,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	userID := userOrDefault(r.URL.Query().Get("user_id"))
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	turns, err := s.Store.RecentTurns(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if turns == nil {
		turns = []state.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history": turns,
		"count":   len(turns),
		"status":  "success",
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	var payload struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := s.Store.ClearUser(r.Context(), userOrDefault(payload.UserID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"cleared": n,
	})
}

func (s *Server) handleRemindersPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	userID := userOrDefault(r.URL.Query().Get("user_id"))
	reminders, err := s.Scheduler.PendingForUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if reminders == nil {
		reminders = []state.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reminders": reminders,
		"count":     len(reminders),
		"status":    "success",
	})
}

// handleRemindersCheck is the delivery pull endpoint. Check-in items arrive
// without text, and the text is generated here, at retrieval time, so it can
// reflect the conversation as it stands when the user actually sees it.
func (s *Server) handleRemindersCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	userID := userOrDefault(r.URL.Query().Get("user_id"))
	deliveries := s.Runner.PendingForUser(userID)
	for i := range deliveries {
		if !deliveries[i].IsCheckin || deliveries[i].Message != "" {
			continue
		}
		message := s.Service.CheckinMessage(r.Context(), userID)
		deliveries[i].Message = message
		s.Runner.AttachMessage(deliveries[i].ID, message)
	}
	if deliveries == nil {
		deliveries = []scheduler.Delivery{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reminders": deliveries,
		"count":     len(deliveries),
		"status":    "success",
	})
}

func (s *Server) handleRemindersTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	s.Runner.RunOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (s *Server) handleRemindersDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	reminders, err := s.Store.ListReminders(r.Context(), 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if reminders == nil {
		reminders = []state.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reminders": reminders,
		"runner":    s.Runner.Status(),
		"now":       time.Now().UTC(),
		"status":    "success",
	})
}

func userOrDefault(userID string) string {
	if userID == "" {
		return defaultUserID
	}
	return userID
}

func decodeJSON(body io.Reader, dest any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

type badRequestError struct {
	msg string
}

func (e badRequestError) Error() string { return e.msg }

func errBadRequest(msg string) error {
	return badRequestError{msg: msg}
}
