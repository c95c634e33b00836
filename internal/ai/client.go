package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Config describes the chat-completions backend. BaseURL is optional and
// points at any OpenAI-compatible endpoint; Aliases maps friendly model
// names to backend model ids.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Aliases map[string]string
}

// ChatCompleter captures the subset of the go-openai client the adapter
// uses, so tests can substitute a scripted backend.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (StreamReceiver, error)
}

// StreamReceiver yields streaming chunks until io.EOF.
type StreamReceiver interface {
	Recv() (openai.ChatCompletionStreamResponse, error)
	Close() error
}

var ErrBackend = errors.New("llm backend error")

// BackendError wraps a failed call against the chat backend.
type BackendError struct {
	Op    string
	Cause error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Cause)
}

func (e *BackendError) Unwrap() error {
	return ErrBackend
}

// Client is the shared LLM handle. It resolves model aliases and wraps call
// failures so callers can match on ErrBackend.
type Client struct {
	chat ChatCompleter
	cfg  Config
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		oc.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}
	return &Client{chat: wrappedClient{openai.NewClientWithConfig(oc)}, cfg: cfg}, nil
}

// NewClientWithBackend wires a caller-provided backend, used by tests.
func NewClientWithBackend(cfg Config, chat ChatCompleter) *Client {
	return &Client{chat: chat, cfg: cfg}
}

// ResolveModel maps a friendly model name through the alias table. An empty
// name resolves to the configured default.
func (c *Client) ResolveModel(name string) string {
	alias := strings.TrimSpace(name)
	if alias == "" {
		return c.cfg.Model
	}
	if resolved, ok := c.cfg.Aliases[strings.ToLower(alias)]; ok {
		return resolved
	}
	return alias
}

func (c *Client) Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := c.chat.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, &BackendError{Op: "chat completion", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionResponse{}, &BackendError{Op: "chat completion", Cause: errors.New("response has no choices")}
	}
	return resp, nil
}

func (c *Client) Stream(ctx context.Context, req openai.ChatCompletionRequest) (StreamReceiver, error) {
	stream, err := c.chat.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, &BackendError{Op: "chat stream", Cause: err}
	}
	return stream, nil
}

// wrappedClient adapts *openai.Client to ChatCompleter: the concrete stream
// type satisfies StreamReceiver already, only the return type differs.
type wrappedClient struct {
	inner *openai.Client
}

func (w wrappedClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return w.inner.CreateChatCompletion(ctx, req)
}

func (w wrappedClient) CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (StreamReceiver, error) {
	return w.inner.CreateChatCompletionStream(ctx, req)
}
