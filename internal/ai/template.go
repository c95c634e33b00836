package ai

import (
	"fmt"
	"regexp"

	"github.com/cokehq/coke-agents/internal/agent"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// RenderTemplate substitutes {name} placeholders from the execution context.
// The first placeholder with no context binding aborts rendering with a
// ValidationError.
func RenderTemplate(unitName, tmpl string, ec agent.Context) (string, error) {
	var missing *agent.ValidationError
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		if missing != nil {
			return match
		}
		key := match[1 : len(match)-1]
		value, ok := ec[key]
		if !ok {
			missing = &agent.ValidationError{Unit: unitName, Key: key}
			return match
		}
		if s, ok := value.(string); ok {
			return s
		}
		return fmt.Sprintf("%v", value)
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}
