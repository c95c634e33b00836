package coke

import (
	"github.com/cokehq/coke-agents/internal/agent"
	"github.com/cokehq/coke-agents/internal/ai"
)

// responseSchema shapes the structured reply: the text plus the task and
// reminder extraction the chat flow acts on.
func responseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"response": map[string]any{
				"type":        "string",
				"description": "Coke's reply to the user",
			},
			"has_task": map[string]any{
				"type":        "boolean",
				"description": "Whether the user mentioned a concrete task",
			},
			"task_description": map[string]any{
				"type":        "string",
				"description": "The task, empty when there is none",
			},
			"task_duration_minutes": map[string]any{
				"type":        "integer",
				"description": "Stated duration in minutes, 0 when not mentioned",
			},
			"needs_reminder": map[string]any{
				"type":        "boolean",
				"description": "Whether to check on the user when the task time is up",
			},
		},
		"required": []string{"response", "has_task", "needs_reminder"},
	}
}

// NewResponseUnit builds the unit that generates Coke's reply to one user
// message and extracts any task/reminder intent from it.
func NewResponseUnit(client *ai.Client) *ai.PromptUnit {
	return &ai.PromptUnit{
		UnitName:       "coke_response",
		Client:         client,
		SystemTemplate: PersonalityPrompt,
		UserTemplate:   taskPromptTemplate,
		Schema:         responseSchema(),
		Defaults: map[string]any{
			"user_message":         "",
			"conversation_history": "(no history yet)",
		},
		Retries: 3,
		Post:    extractResponse,
	}
}

func extractResponse(ec agent.Context, result any) error {
	decoded, ok := result.(map[string]any)
	if !ok {
		// Free-form text slipped through; keep it as the reply and assume
		// no task intent.
		ec["coke_response"] = asString(result)
		ec["has_task"] = false
		ec["needs_reminder"] = false
		return nil
	}
	ec["coke_response"] = stringField(decoded, "response")
	ec["has_task"] = boolField(decoded, "has_task")
	ec["task_description"] = stringField(decoded, "task_description")
	ec["task_duration_minutes"] = intField(decoded, "task_duration_minutes")
	ec["needs_reminder"] = boolField(decoded, "needs_reminder")
	return nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func boolField(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
