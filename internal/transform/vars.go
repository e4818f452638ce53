// Package transform applies variable substitution to agent configuration
// documents before they are parsed and fingerprinted.
package transform

import (
	"bytes"
	"fmt"
	"text/template"
	"unicode/utf8"
)

// Expand processes a config document's raw content through Go template
// substitution using the merged variable map. When no variables are defined
// the content passes through untouched, so documents containing literal
// template markers stay valid in projects that never declare variables.
func Expand(content []byte, vars map[string]string) ([]byte, error) {
	if len(vars) == 0 {
		return content, nil
	}
	if !utf8.Valid(content) || bytes.ContainsRune(content, 0) {
		return content, nil
	}

	tmpl, err := template.New("").Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("executing template: %w", err)
	}
	return buf.Bytes(), nil
}

// MergeVars merges project-level variables with per-agent vars.
// Per-agent vars override project-level ones.
func MergeVars(global, perAgent map[string]string) map[string]string {
	if len(global) == 0 && len(perAgent) == 0 {
		return nil
	}
	merged := make(map[string]string, len(global)+len(perAgent))
	for k, v := range global {
		merged[k] = v
	}
	for k, v := range perAgent {
		merged[k] = v
	}
	return merged
}
