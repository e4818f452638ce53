package lockfile

import "time"

// File represents the convai.lock file.
type File struct {
	Version int `yaml:"version"`

	// Agents maps agent name -> environment -> last-synced state.
	Agents map[string]map[string]Entry `yaml:"agents"`
}

// Entry records the last state successfully pushed to the remote for one
// agent in one environment. It is created on the first successful create and
// overwritten on every successful update; it is never removed automatically.
type Entry struct {
	ID   string `yaml:"id"`
	Hash string `yaml:"hash"`

	// PushedHash is the fingerprint of the document as actually sent to the
	// remote (display name and environment tag included). The remote stores
	// that form, so drift comparisons use PushedHash, while change detection
	// against the declared document uses Hash. Empty in entries written
	// before this field existed.
	PushedHash string `yaml:"pushed_hash,omitempty"`

	SyncedAt time.Time `yaml:"synced_at"`
}

// DefaultEnvironment is the lock key used for declarations without an
// environment tag.
const DefaultEnvironment = "default"
