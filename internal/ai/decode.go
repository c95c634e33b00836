package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// StructuredToolName is the function the backend is forced to call when a
// response schema is attached to a prompt.
const StructuredToolName = "json_format_response"

var ErrParse = errors.New("structured output parse failed")

// ParseError reports structured output that could not be decoded. Stage names
// the decode path that was attempted last.
type ParseError struct {
	Stage string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode structured output (%s): %v", e.Stage, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// StructuredTool builds the forced function definition carrying the caller's
// JSON schema for the response object.
func StructuredTool(schema map[string]any) (openai.Tool, error) {
	params, err := json.Marshal(schema)
	if err != nil {
		return openai.Tool{}, fmt.Errorf("marshal response schema: %w", err)
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        StructuredToolName,
			Description: "Return the response as a structured JSON object.",
			Parameters:  json.RawMessage(params),
		},
	}, nil
}

// DecodeStructured extracts the structured object from a completion message.
// Backends differ in how they return forced-function output, so three shapes
// are tried in order: the tool_calls list, the legacy function_call field,
// then the plain content parsed as JSON.
func DecodeStructured(msg openai.ChatCompletionMessage) (map[string]any, error) {
	if len(msg.ToolCalls) > 0 {
		return decodeArguments("tool_calls", msg.ToolCalls[0].Function.Arguments)
	}
	if msg.FunctionCall != nil {
		return decodeArguments("function_call", msg.FunctionCall.Arguments)
	}
	return DecodeContent(msg.Content)
}

// DecodeContent parses message content as a bare JSON object, tolerating
// markdown code fences around it.
func DecodeContent(content string) (map[string]any, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	return decodeArguments("content", text)
}

func decodeArguments(stage, raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ParseError{Stage: stage, Cause: errors.New("empty payload")}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &ParseError{Stage: stage, Cause: err}
	}
	return out, nil
}

// FallbackObject is the neutral structured response substituted when a
// non-streaming decode fails: an empty reply that schedules nothing.
func FallbackObject() map[string]any {
	return map[string]any{
		"response":       "",
		"has_task":       false,
		"needs_reminder": false,
	}
}
