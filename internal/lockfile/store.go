// Package lockfile persists the last-synced fingerprint and remote ID per
// agent. The lock file is the sole record of "what we last pushed"; it is
// never reconstructed from the remote, because the remote may have been
// edited out-of-band.
//
// The store assumes a single writer: one process reconciling one checkout.
// Running two processes against the same lock file is undefined behavior.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrCorrupt indicates an unparsable or structurally invalid lock file.
// It is surfaced rather than silently reset — discarding the lock would
// mask drift and re-create every agent on the next pass.
var ErrCorrupt = errors.New("corrupt lock file")

// Store provides load/get/upsert/save access to a lock file.
type Store struct {
	path string
	file File
}

// Open reads a lock file. A missing file yields an empty store; an
// unparsable or invalid file fails with ErrCorrupt.
func Open(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Store{path: path, file: File{Version: 1, Agents: map[string]map[string]Entry{}}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lock file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrCorrupt, path, err)
	}
	if errs := validate(&f); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrCorrupt, path, strings.Join(errs, "; "))
	}
	if f.Agents == nil {
		f.Agents = map[string]map[string]Entry{}
	}

	return &Store{path: path, file: f}, nil
}

// Path returns the lock file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the entry for an agent in an environment, if recorded.
func (s *Store) Get(name, env string) (Entry, bool) {
	envs, ok := s.file.Agents[name]
	if !ok {
		return Entry{}, false
	}
	e, ok := envs[env]
	return e, ok
}

// Upsert records an entry for an agent in an environment. The change is
// in-memory until Save is called.
func (s *Store) Upsert(name, env string, e Entry) {
	envs, ok := s.file.Agents[name]
	if !ok {
		envs = map[string]Entry{}
		s.file.Agents[name] = envs
	}
	envs[env] = e
}

// Delete removes an entry. Removal is an explicit operator action; the sync
// engine never calls this.
func (s *Store) Delete(name, env string) {
	if envs, ok := s.file.Agents[name]; ok {
		delete(envs, env)
		if len(envs) == 0 {
			delete(s.file.Agents, name)
		}
	}
}

// Names returns all agent names with at least one recorded entry.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.file.Agents))
	for name := range s.file.Agents {
		names = append(names, name)
	}
	return names
}

// Save persists the full mapping atomically: the marshaled file is written
// to a temporary path and renamed over the prior file in one step, so an
// abrupt termination mid-write never leaves a half-written store.
func (s *Store) Save() error {
	data, err := yaml.Marshal(&s.file)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing temp lock file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp lock file to %s: %w", s.path, err)
	}
	return nil
}

// validate checks a parsed lock file for structural correctness.
// Returns a list of error messages (empty if valid).
func validate(f *File) []string {
	var errs []string

	if f.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d — only version 1 is supported", f.Version))
	}

	for name, envs := range f.Agents {
		if name == "" {
			errs = append(errs, "entry with empty agent name")
			continue
		}
		for env, e := range envs {
			if env == "" {
				errs = append(errs, fmt.Sprintf("agent '%s': entry with empty environment", name))
			}
			if e.ID == "" {
				errs = append(errs, fmt.Sprintf("agent '%s' env '%s': 'id' is required", name, env))
			}
			if e.Hash == "" {
				errs = append(errs, fmt.Sprintf("agent '%s' env '%s': 'hash' is required", name, env))
			}
		}
	}

	return errs
}
