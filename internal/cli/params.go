package cli

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// parseParams turns --param name=value flags into query parameters.
//
// Values are YAML scalars or flow sequences, so 42 is an int, 1.5 a float,
// true a bool, null nil and [1, 2] a list. Anything else is a string; quote
// it to force a string ('42').
func parseParams(flags []string) (map[string]any, error) {
	params := make(map[string]any, len(flags))
	for _, flag := range flags {
		name, raw, ok := strings.Cut(flag, "=")
		name = strings.TrimPrefix(strings.TrimSpace(name), "$")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q: want name=value", flag)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid --param %s: %w", name, err)
		}
		if m, isMap := value.(map[string]any); isMap {
			return nil, fmt.Errorf("invalid --param %s: maps are not supported, got %v", name, m)
		}
		params[name] = value
	}
	return params, nil
}
