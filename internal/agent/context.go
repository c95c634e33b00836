package agent

// Context is the shared mutable state for one execution chain. A unit and
// any nested units it spawns operate on the same Context by reference; it is
// never shared across concurrent engine runs, so access needs no locking.
type Context map[string]any

func NewContext() Context {
	return Context{}
}

func (c Context) GetString(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c Context) GetBool(key string) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return false
}

// GetInt tolerates float64 values since JSON decoding produces them for
// numeric fields.
func (c Context) GetInt(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// ApplyDefaults fills c with values from defaults for any key that is absent.
// Nested maps merge recursively so a default can pre-populate a nested
// structure without clobbering caller-provided subkeys. A key present with a
// nil value is replaced only when the default for it is a map.
func (c Context) ApplyDefaults(defaults map[string]any) {
	applyDefaults(defaults, c)
}

func applyDefaults(defaults, target map[string]any) {
	for key, value := range defaults {
		current, ok := target[key]
		if !ok {
			target[key] = value
			continue
		}
		defMap, isMap := value.(map[string]any)
		if !isMap {
			continue
		}
		if curMap, ok := current.(map[string]any); ok {
			applyDefaults(defMap, curMap)
			continue
		}
		if current == nil {
			target[key] = defMap
		}
	}
}

// Clone returns a copy of the context with nested maps copied recursively.
// Snapshots hand clones to consumers so later mutation by the running unit
// is not observable through an already-emitted snapshot.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for key, value := range c {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, inner := range v {
			out[key] = cloneValue(inner)
		}
		return out
	case Context:
		return map[string]any(v.Clone())
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}
