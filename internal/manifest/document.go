package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// parseDocument parses a config document into its generic tree form. The
// document must be a mapping at the top level; anything else cannot describe
// an agent configuration.
func parseDocument(data []byte) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level value must be a mapping, got %T", raw)
	}
	return doc, nil
}
