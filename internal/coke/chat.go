package coke

import (
	"context"

	"github.com/cokehq/coke-agents/internal/agent"
	"github.com/cokehq/coke-agents/internal/ai"
)

// ChatUnit is the chat orchestrator: it drives the response unit over the
// same context and surfaces the reply as a message snapshot.
type ChatUnit struct {
	Client *ai.Client
}

var _ agent.Unit = (*ChatUnit)(nil)

func (u *ChatUnit) Name() string    { return "coke_chat" }
func (u *ChatUnit) MaxRetries() int { return 3 }

func (u *ChatUnit) Prepare(ctx context.Context, ec agent.Context) error {
	ec.ApplyDefaults(map[string]any{
		"user_message":         "",
		"conversation_history": "(no history yet)",
	})
	return nil
}

func (u *ChatUnit) Execute(ctx context.Context, ec agent.Context, emit agent.EmitFunc) (any, error) {
	inner := agent.NewEngine()
	for snap := range inner.Run(ctx, NewResponseUnit(u.Client), ec) {
		if snap.Status == agent.StatusFinished {
			break
		}
	}
	response := ec.GetString("coke_response")
	emit(agent.StatusMessage)
	return response, nil
}

func (u *ChatUnit) Postprocess(ctx context.Context, ec agent.Context, result any) error {
	return nil
}

func (u *ChatUnit) Recover(ctx context.Context, ec agent.Context, cause error) {}
