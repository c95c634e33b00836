package coke

import (
	"strings"

	"github.com/cokehq/coke-agents/internal/agent"
	"github.com/cokehq/coke-agents/internal/ai"
)

// NewReminderUnit builds the unit that writes the reminder text for a task
// whose time is up. It expects task_description and conversation_history in
// the context and leaves reminder_message behind.
func NewReminderUnit(client *ai.Client) *ai.PromptUnit {
	return &ai.PromptUnit{
		UnitName:       "coke_reminder",
		Client:         client,
		SystemTemplate: PersonalityPrompt + "\n\n" + reminderFramingTemplate,
		UserTemplate:   proactiveUserTemplate,
		Defaults: map[string]any{
			"task_description":     "the task",
			"conversation_history": "(no history yet)",
		},
		Retries: 3,
		Post:    storeProactiveMessage("reminder_message"),
	}
}

// NewCheckinUnit builds the unit that writes a check-in for a quiet user. It
// expects last_task and conversation_history and leaves checkin_message.
func NewCheckinUnit(client *ai.Client) *ai.PromptUnit {
	return &ai.PromptUnit{
		UnitName:       "coke_checkin",
		Client:         client,
		SystemTemplate: PersonalityPrompt + "\n\n" + checkinFramingTemplate,
		UserTemplate:   proactiveUserTemplate,
		Defaults: map[string]any{
			"last_task":            "(none)",
			"conversation_history": "(no history yet)",
		},
		Retries: 3,
		Post:    storeProactiveMessage("checkin_message"),
	}
}

func storeProactiveMessage(key string) func(ec agent.Context, result any) error {
	return func(ec agent.Context, result any) error {
		ec[key] = strings.TrimSpace(asString(result))
		return nil
	}
}
