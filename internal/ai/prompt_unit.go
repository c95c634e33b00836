package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cokehq/coke-agents/internal/agent"
)

// PromptUnit is the generic LLM-invocation unit: it renders templated
// prompts from the execution context, calls the chat backend, and leaves the
// (optionally schema-shaped) result for the Post hook to interpret.
//
// With a Schema set the backend is forced to call the structured-output
// function and the result is a map[string]any; without one the result is the
// plain content string. Streaming runs emit a running snapshot per received
// increment; a streaming parse failure fails the attempt instead of falling
// back, since partial output has already been observed.
type PromptUnit struct {
	UnitName       string
	Client         *Client
	Model          string
	SystemTemplate string
	UserTemplate   string
	Schema         map[string]any
	Defaults       map[string]any
	Retries        int
	Stream         bool
	Temperature    float32
	// ExtraParams passes opaque chat-request options through to the backend,
	// keyed by the request's wire names (max_tokens, top_p, stop, ...).
	ExtraParams map[string]any

	// Post interprets the raw result into named context keys. Nil means the
	// raw result is left under llm_response only.
	Post func(ec agent.Context, result any) error
	// OnError observes failed attempts before the engine decides on a retry.
	OnError func(ctx context.Context, ec agent.Context, cause error)
}

var _ agent.Unit = (*PromptUnit)(nil)

func (u *PromptUnit) Name() string    { return u.UnitName }
func (u *PromptUnit) MaxRetries() int { return u.Retries }

func (u *PromptUnit) Prepare(ctx context.Context, ec agent.Context) error {
	ec.ApplyDefaults(u.Defaults)

	system, err := RenderTemplate(u.UnitName, u.SystemTemplate, ec)
	if err != nil {
		return err
	}
	user, err := RenderTemplate(u.UnitName, u.UserTemplate, ec)
	if err != nil {
		return err
	}
	ec["system_prompt"] = system
	ec["user_prompt"] = user
	return nil
}

func (u *PromptUnit) Execute(ctx context.Context, ec agent.Context, emit agent.EmitFunc) (any, error) {
	if u.Client == nil {
		return nil, errors.New("prompt unit has no llm client")
	}

	req := openai.ChatCompletionRequest{
		Model:       u.Client.ResolveModel(u.Model),
		Temperature: u.Temperature,
	}
	if err := applyExtraParams(&req, u.ExtraParams); err != nil {
		return nil, err
	}
	if system := ec.GetString("system_prompt"); system != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: ec.GetString("user_prompt"),
	})
	if u.Schema != nil {
		tool, err := StructuredTool(u.Schema)
		if err != nil {
			return nil, err
		}
		req.Tools = []openai.Tool{tool}
		req.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: StructuredToolName},
		}
	}

	if u.Stream {
		return u.executeStream(ctx, ec, emit, req)
	}

	resp, err := u.Client.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	msg := resp.Choices[0].Message
	ec["llm_response"] = msg.Content

	if u.Schema == nil {
		return msg.Content, nil
	}
	decoded, err := DecodeStructured(msg)
	if err != nil {
		// A malformed object from a non-streaming call degrades to the
		// neutral response rather than burning retries on a stochastic
		// failure.
		var perr *ParseError
		if errors.As(err, &perr) {
			return FallbackObject(), nil
		}
		return nil, err
	}
	return decoded, nil
}

func (u *PromptUnit) executeStream(ctx context.Context, ec agent.Context, emit agent.EmitFunc, req openai.ChatCompletionRequest) (any, error) {
	req.Stream = true
	stream, err := u.Client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var content, toolArgs string
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &BackendError{Op: "chat stream recv", Cause: err}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		grew := false
		if delta.Content != "" {
			content += delta.Content
			grew = true
		}
		for _, call := range delta.ToolCalls {
			if call.Function.Arguments != "" {
				toolArgs += call.Function.Arguments
				grew = true
			}
		}
		if grew {
			// Structured calls stream their payload through tool-argument
			// deltas, so those are what the consumer should see growing.
			if toolArgs != "" {
				ec["llm_streaming_response"] = toolArgs
			} else {
				ec["llm_streaming_response"] = content
			}
			emit(agent.StatusRunning)
		}
	}
	ec["llm_response"] = content

	if u.Schema == nil {
		return content, nil
	}
	raw := toolArgs
	if raw == "" {
		raw = content
	}
	decoded, err := DecodeContent(raw)
	if err != nil {
		return nil, fmt.Errorf("streamed output: %w", err)
	}
	return decoded, nil
}

// applyExtraParams merges opaque options into the request through its JSON
// form, before prompts and tooling are attached. Keys that do not correspond
// to a chat-request field are dropped, since the backend binding could not
// carry them to the wire anyway.
func applyExtraParams(req *openai.ChatCompletionRequest, extra map[string]any) error {
	if len(extra) == 0 {
		return nil
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	var merged map[string]any
	if err := json.Unmarshal(raw, &merged); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	for key, value := range extra {
		merged[key] = value
	}
	raw, err = json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode merged request: %w", err)
	}
	if err := json.Unmarshal(raw, req); err != nil {
		return fmt.Errorf("apply extra params: %w", err)
	}
	return nil
}

func (u *PromptUnit) Postprocess(ctx context.Context, ec agent.Context, result any) error {
	if u.Post == nil {
		return nil
	}
	return u.Post(ec, result)
}

func (u *PromptUnit) Recover(ctx context.Context, ec agent.Context, cause error) {
	if u.OnError != nil {
		u.OnError(ctx, ec, cause)
	}
}
