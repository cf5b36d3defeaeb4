package probe

import (
	"fmt"
	"sort"
)

// BindingPrefix names the mechanism that injects database bindings.
const BindingPrefix = "Hyperdrive"

// Environment is the configuration surface handed to a check cycle: binding
// objects and plain string settings side by side, keyed by name.
type Environment map[string]any

// Binding is implemented by typed binding values.
type Binding interface {
	ConnectionString() string
}

// Discover scans env for values shaped like a pooled database binding and
// returns one Target per match, ordered by key. Anything else is skipped.
func Discover(env Environment) []Target {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Target
	for _, k := range keys {
		cs, ok := connectionString(env[k])
		if !ok {
			continue
		}
		out = append(out, Target{
			Name:             TargetName(k),
			ConnectionString: cs,
		})
	}
	return out
}

// TargetName builds the display name for the binding under key.
func TargetName(key string) string {
	return fmt.Sprintf("%s (%s)", BindingPrefix, key)
}

func connectionString(v any) (string, bool) {
	var cs string
	switch b := v.(type) {
	case nil:
		return "", false
	case Binding:
		cs = b.ConnectionString()
	case map[string]any:
		s, ok := b["connectionString"].(string)
		if !ok {
			return "", false
		}
		cs = s
	case map[string]string:
		cs = b["connectionString"]
	default:
		return "", false
	}
	return cs, cs != ""
}
