package manifest

// Manifest represents the agents.yaml file: the ordered set of agent
// declarations plus project-level settings. Declaration order is sync order.
type Manifest struct {
	Version   int                  `yaml:"version"`
	Variables map[string]string    `yaml:"variables,omitempty"`
	Templates []TemplateDefinition `yaml:"templates,omitempty"`
	Agents    []AgentDeclaration   `yaml:"agents"`
}

// AgentDeclaration declares one remote agent managed by this project.
type AgentDeclaration struct {
	Name string `yaml:"name"`

	// ID is the remote identifier, present once the agent has been created
	// (or when adopting an agent created elsewhere).
	ID string `yaml:"id,omitempty"`

	// Config is the path to the agent's configuration document, relative to
	// the project root.
	Config string `yaml:"config"`

	// Test is an optional path to a test artifact for this agent.
	Test string `yaml:"test,omitempty"`

	// Environment tags the declaration for environment-filtered syncs and
	// keys the lock entry.
	Environment string `yaml:"environment,omitempty"`

	// Vars are per-agent variable overrides applied to the config document.
	Vars map[string]string `yaml:"vars,omitempty"`
}

// TemplateDefinition adds a custom config template to the catalog or
// overrides a built-in one.
type TemplateDefinition struct {
	Name   string         `yaml:"name"`
	Config map[string]any `yaml:"config"`
}
