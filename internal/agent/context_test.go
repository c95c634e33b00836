package agent

import "testing"

func TestApplyDefaultsFillsOnlyAbsentKeys(t *testing.T) {
	ec := Context{"user_message": "hi", "persona": "grumpy"}
	ec.ApplyDefaults(map[string]any{
		"persona":              "helpful",
		"conversation_history": "(no history yet)",
	})

	if ec.GetString("persona") != "grumpy" {
		t.Fatalf("caller value must survive defaulting, got %q", ec.GetString("persona"))
	}
	if ec.GetString("conversation_history") != "(no history yet)" {
		t.Fatalf("absent key must take the default, got %q", ec.GetString("conversation_history"))
	}
}

func TestApplyDefaultsNilValue(t *testing.T) {
	ec := Context{"options": nil, "note": nil}
	ec.ApplyDefaults(map[string]any{
		"options": map[string]any{"stream": true},
		"note":    "filled",
	})

	options, ok := ec["options"].(map[string]any)
	if !ok || options["stream"] != true {
		t.Fatalf("nil value must be replaced by a default map, got %v", ec["options"])
	}
	if ec["note"] != nil {
		t.Fatalf("nil value must survive a scalar default, got %v", ec["note"])
	}
}

func TestApplyDefaultsMergesNestedMaps(t *testing.T) {
	ec := Context{
		"params": map[string]any{"model": "custom"},
	}
	ec.ApplyDefaults(map[string]any{
		"params": map[string]any{"model": "default", "temperature": 0.2},
	})

	params := ec["params"].(map[string]any)
	if params["model"] != "custom" {
		t.Fatalf("nested caller value must survive, got %v", params["model"])
	}
	if params["temperature"] != 0.2 {
		t.Fatalf("nested default must be filled in, got %v", params["temperature"])
	}
}
