package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/coder/websocket"

	"github.com/cokehq/coke-agents/internal/scheduler"
)

type captureWriter struct {
	frames [][]byte
}

func (c *captureWriter) Write(ctx context.Context, msgType websocket.MessageType, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func TestStreamDeliveries(t *testing.T) {
	ch := make(chan scheduler.Delivery, 2)
	ch <- scheduler.Delivery{ID: "d1", UserID: "u1", Message: "ping"}
	ch <- scheduler.Delivery{ID: "d2", UserID: "u1", IsCheckin: true}
	close(ch)

	writer := &captureWriter{}
	if err := streamDeliveries(context.Background(), ch, writer); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(writer.frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(writer.frames))
	}
	var first map[string]any
	if err := json.Unmarshal(writer.frames[0], &first); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if first["id"] != "d1" || first["message"] != "ping" {
		t.Fatalf("unexpected frame: %v", first)
	}
}

func TestStreamDeliveriesStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := make(chan scheduler.Delivery)
	if err := streamDeliveries(ctx, ch, &captureWriter{}); err == nil {
		t.Fatalf("expected context error")
	}
}
