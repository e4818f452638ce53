package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bianoble/convai/internal/transform"
)

// Sentinel errors for config-document failures. Both are fatal for the one
// agent only; the sync engine records them and moves on.
var (
	ErrConfigNotFound  = errors.New("config not found")
	ErrConfigMalformed = errors.New("config malformed")
)

// ResolveConfig reads and parses the configuration document referenced by a
// declaration. Project variables merged with the declaration's vars are
// substituted into the raw document before parsing. Documents may be YAML or
// JSON (YAML is a superset).
func (m *Manifest) ResolveConfig(root string, decl AgentDeclaration) (map[string]any, error) {
	path := decl.Config
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, decl.Config)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", decl.Config, err)
	}

	expanded, err := transform.Expand(data, transform.MergeVars(m.Variables, decl.Vars))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, decl.Config, err)
	}

	doc, err := parseDocument(expanded)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigMalformed, decl.Config, err)
	}
	return doc, nil
}

// ConfigPaths returns the absolute paths of every declared config document,
// in declaration order. Used by the watch loop to build its watch set.
func (m *Manifest) ConfigPaths(root string) []string {
	paths := make([]string, 0, len(m.Agents))
	for _, a := range m.Agents {
		p := a.Config
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		paths = append(paths, filepath.Clean(p))
	}
	return paths
}

// Find returns the declaration with the given name, if present.
func (m *Manifest) Find(name string) (AgentDeclaration, bool) {
	for _, a := range m.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentDeclaration{}, false
}
