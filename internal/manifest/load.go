// Package manifest loads and validates the agents.yaml manifest: the ordered
// registry of declared agents. The manifest is owned by the operator; the
// sync engine only reads it.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for manifest-level failures. Both abort a sync pass.
var (
	ErrNotFound  = errors.New("manifest not found")
	ErrMalformed = errors.New("manifest malformed")
)

// Load reads and validates an agents.yaml manifest, preserving declaration
// order.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s — run 'convai init' first", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrMalformed, path, err)
	}

	if errs := Validate(&m); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, &ValidationError{Errors: errs})
	}

	return &m, nil
}

// Save writes a manifest atomically using a temp file and rename. Only
// operator-facing commands (init, add) write the manifest; the sync engine
// never does.
func Save(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp manifest %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp manifest to %s: %w", path, err)
	}
	return nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Manifest for structural correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(m *Manifest) []string {
	var errs []string

	if m.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d — only version 1 is supported", m.Version))
	}

	names := make(map[string]bool)
	for i, a := range m.Agents {
		prefix := fmt.Sprintf("agent[%d]", i)
		if a.Name != "" {
			prefix = fmt.Sprintf("agent '%s'", a.Name)
		}

		if a.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: 'name' is required", prefix))
		} else if names[a.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate agent name '%s'", prefix, a.Name))
		} else {
			names[a.Name] = true
		}

		if a.Config == "" {
			errs = append(errs, fmt.Sprintf("%s: 'config' is required", prefix))
		}
	}

	tmplNames := make(map[string]bool)
	for i, td := range m.Templates {
		prefix := fmt.Sprintf("template[%d]", i)
		if td.Name != "" {
			prefix = fmt.Sprintf("template '%s'", td.Name)
		}

		if td.Name == "" {
			errs = append(errs, fmt.Sprintf("%s: 'name' is required", prefix))
		} else if tmplNames[td.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate template name '%s'", prefix, td.Name))
		} else {
			tmplNames[td.Name] = true
		}

		if len(td.Config) == 0 {
			errs = append(errs, fmt.Sprintf("%s: 'config' is required", prefix))
		}
	}

	return errs
}
