package convai

import "github.com/bianoble/convai/internal/engine"

// Type aliases re-export engine result types as the public API.
// Users import "github.com/bianoble/convai/pkg/convai" and use
// convai.Report, convai.AgentResult, etc.

type AgentResult = engine.AgentResult
type Report = engine.Report
type AgentState = engine.AgentState
type StatusEntry = engine.StatusEntry
type StatusReport = engine.StatusReport

// Agent states as reported by Status.
const (
	StateSynced  = engine.StateSynced
	StateChanged = engine.StateChanged
	StateNew     = engine.StateNew
	StateBroken  = engine.StateBroken
)
