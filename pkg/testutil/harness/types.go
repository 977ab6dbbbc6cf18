package harness

import (
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/workspaces"
)

// RunnerConfig describes a shared runner instance for a test package.
type RunnerConfig struct {
	// Name identifies the shared runner. Tests asking for the same name get
	// the same underlying base environment.
	Name string

	// Config is the runner configuration. Nil resolves defaults from the
	// environment.
	Config *workspaces.Config

	// Init provisions the base environment.
	Init workspaces.InitFn

	// Timeout bounds how long GetRunner waits for the bootstrap.
	Timeout time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig suitable for most test
// packages: a single shared runner with a generous bootstrap timeout.
func DefaultRunnerConfig(init workspaces.InitFn) *RunnerConfig {
	return &RunnerConfig{
		Name:    "default",
		Init:    init,
		Timeout: 5 * time.Minute,
	}
}
