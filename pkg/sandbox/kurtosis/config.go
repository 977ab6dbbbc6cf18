package kurtosis

import "time"

// Config describes a kurtosis-backed devnet used in place of a single-process
// sandbox. These networks are heavyweight, so they are normally shared across
// a whole test package.
type Config struct {
	// Name is the enclave name. Reusing a name reuses a running enclave.
	Name string
	// Timeout bounds enclave creation and genesis.
	Timeout time.Duration
	// KeepAlive orphans the enclave on exit instead of destroying it.
	KeepAlive bool
	// Participants is the total number of client pairs to run.
	Participants int
	// PortOffset shifts published port ranges so parallel test packages do
	// not collide. EL ports start at 32000 + offset, CL ports at 33000 + offset.
	PortOffset int
	// LogLevel is the global log level passed to the network, "" for default.
	LogLevel string
}

// DefaultConfig returns a small, single-enclave network configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:         "workspaces-devnet",
		Timeout:      15 * time.Minute,
		Participants: 2,
	}
}
