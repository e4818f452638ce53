// Package template provides the catalog of starter agent configurations
// used by 'convai add'.
package template

import (
	"fmt"
	"sort"

	"github.com/bianoble/convai/internal/manifest"
)

// builtinTemplates are the starter configurations shipped with the tool.
var builtinTemplates = map[string]map[string]any{
	"default": {
		"conversation_config": map[string]any{
			"model_id":        "eleven_turbo_v2",
			"prompt_template": "You are a helpful AI assistant.",
			"max_tokens":      200,
			"temperature":     0.7,
		},
		"platform_settings": map[string]any{},
		"tags":              []any{},
	},
	"minimal": {
		"conversation_config": map[string]any{
			"model_id": "eleven_turbo_v2",
		},
	},
}

// Catalog resolves template names to starter configuration documents.
type Catalog struct {
	templates map[string]map[string]any
}

// NewCatalog creates a Catalog with built-in templates and optional custom
// definitions from the manifest. Custom definitions override built-ins of
// the same name.
func NewCatalog(custom []manifest.TemplateDefinition) *Catalog {
	templates := make(map[string]map[string]any, len(builtinTemplates)+len(custom))
	for name, cfg := range builtinTemplates {
		templates[name] = cfg
	}
	for _, td := range custom {
		templates[td.Name] = td.Config
	}
	return &Catalog{templates: templates}
}

// Resolve returns a deep copy of the named template's configuration, so
// callers can edit the result without corrupting the catalog.
func (c *Catalog) Resolve(name string) (map[string]any, error) {
	cfg, ok := c.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown template '%s' — known templates: %v", name, c.Known())
	}
	return copyDocument(cfg), nil
}

// Known returns all template names, sorted.
func (c *Catalog) Known() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsCustom reports whether a template came from the manifest rather than
// the built-in set.
func (c *Catalog) IsCustom(name string) bool {
	_, isBuiltin := builtinTemplates[name]
	_, isDefined := c.templates[name]
	return isDefined && !isBuiltin
}

func copyDocument(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return val
	}
}
