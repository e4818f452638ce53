// Package remote is the boundary to the conversational-AI agents API. The
// sync engine consumes the Client interface; this package's HTTP
// implementation is the only code that knows about endpoints, credentials,
// and wire formats.
package remote

import (
	"context"
	"errors"
)

// Error taxonomy for remote calls. The engine records these per agent in the
// sync report; none of them aborts a pass.
var (
	ErrUnauthorized = errors.New("remote: unauthorized")
	ErrNotFound     = errors.New("remote: agent not found")
	ErrRateLimited  = errors.New("remote: rate limited")
	ErrUnreachable  = errors.New("remote: unreachable")
)

// AgentState is the remote's view of an agent, as returned by GetAgent.
type AgentState struct {
	ID   string
	Name string

	// Config is the remote configuration document with API-side metadata
	// stripped, suitable for fingerprinting against the lock entry.
	Config map[string]any
}

// Client is the remote agents API consumed by the sync engine. Every call
// honors the context and is subject to a bounded timeout, so a hung network
// call cannot wedge a watch cycle.
type Client interface {
	// CreateAgent creates a named agent from a config document and returns
	// its remote identifier.
	CreateAgent(ctx context.Context, name string, config map[string]any) (string, error)

	// UpdateAgent replaces an existing agent's configuration.
	UpdateAgent(ctx context.Context, id, name string, config map[string]any) error

	// GetAgent fetches the remote state of an agent. Used only for
	// best-effort drift detection.
	GetAgent(ctx context.Context, id string) (*AgentState, error)

	// DeleteAgent removes a remote agent. Exposed for operator tooling; the
	// sync engine never deletes.
	DeleteAgent(ctx context.Context, id string) error
}
