package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/cokehq/coke-agents/internal/scheduler"
)

type wsWriter interface {
	Write(ctx context.Context, msgType websocket.MessageType, data []byte) error
}

// handleFeedWS pushes every promoted delivery to the connected client as it
// happens. Clients that only poll use /api/reminders/check instead.
func (s *Server) handleFeedWS(w http.ResponseWriter, r *http.Request) {
	if s.Runner == nil {
		writeError(w, http.StatusInternalServerError, errBadRequest("feed unavailable"))
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	_, ch, cancel := s.Runner.Subscribe()
	defer cancel()

	if err := streamDeliveries(r.Context(), ch, conn); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "stream error")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "done")
}

func streamDeliveries(ctx context.Context, ch <-chan scheduler.Delivery, writer wsWriter) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-ch:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(d)
			if err != nil {
				return err
			}
			if err := writer.Write(ctx, websocket.MessageText, payload); err != nil {
				return err
			}
		}
	}
}
