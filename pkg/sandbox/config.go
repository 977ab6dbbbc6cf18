package sandbox

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/accounts"
	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
)

// Config describes a local disposable node process.
type Config struct {
	// Binary is the node binary to launch. Empty means search PATH for the
	// implementation's default binary name.
	Binary string
	// Implementation selects which dev node flavor to launch.
	Implementation clients.Client
	// Host is the interface the node binds to.
	Host string
	// Port is the RPC port. 0 means pick a free port per start.
	Port int
	// ChainID is the chain ID the node is started with.
	ChainID uint64
	// Accounts is the number of pre-funded dev accounts.
	Accounts int
	// Balance is the initial balance per dev account, in whole ether.
	Balance uint64
	// Mnemonic seeds the dev accounts.
	Mnemonic string
	// BlockTime is the seconds between blocks. 0 mines on demand.
	BlockTime int
	// KeepAlive leaves the process running after Stop, for debugging.
	KeepAlive bool
	// Timeout bounds how long to wait for the node to answer RPC.
	Timeout time.Duration
	// ExtraArgs are appended verbatim to the node command line.
	ExtraArgs []string
}

// DefaultConfig returns a Config with sensible default values for launching
// a local sandbox node.
func DefaultConfig() *Config {
	return &Config{
		Implementation: clients.ClientAnvil,
		Host:           "127.0.0.1",
		Port:           0,
		ChainID:        31337,
		Accounts:       10,
		Balance:        10000,
		Mnemonic:       accounts.DefaultMnemonic,
		KeepAlive:      false,
		Timeout:        30 * time.Second,
	}
}

// ConfigFromEnvironment reads configuration values from environment variables
// and returns a Config. It returns an error if any environment variable
// contains an invalid value.
//
// The following environment variables are supported:
//   - WORKSPACES_SANDBOX_BINARY: Path to the node binary
//   - WORKSPACES_SANDBOX_IMPL: Node implementation to launch (default: "anvil")
//   - WORKSPACES_SANDBOX_PORT: Fixed RPC port instead of a random free one
//   - WORKSPACES_KEEP_ALIVE: Whether to leave the node running after tests (default: false)
//   - WORKSPACES_TIMEOUT: Duration to wait for node readiness (e.g., "30s") (default: 30s)
func ConfigFromEnvironment() (*Config, error) {
	config := &Config{}

	if binary := os.Getenv("WORKSPACES_SANDBOX_BINARY"); binary != "" {
		config.Binary = binary
	}

	if impl := os.Getenv("WORKSPACES_SANDBOX_IMPL"); impl != "" {
		config.Implementation = clients.ClientFromString(impl)
		if config.Implementation == clients.ClientUnknown {
			return nil, fmt.Errorf("invalid WORKSPACES_SANDBOX_IMPL value %q", impl)
		}
	}

	if port := os.Getenv("WORKSPACES_SANDBOX_PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKSPACES_SANDBOX_PORT value %q: %w", port, err)
		}

		config.Port = parsed
	}

	if keepAlive := os.Getenv("WORKSPACES_KEEP_ALIVE"); keepAlive != "" {
		parsed, err := strconv.ParseBool(keepAlive)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKSPACES_KEEP_ALIVE value %q: %w", keepAlive, err)
		}

		config.KeepAlive = parsed
	}

	if timeout := os.Getenv("WORKSPACES_TIMEOUT"); timeout != "" {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKSPACES_TIMEOUT value %q: %w", timeout, err)
		}

		config.Timeout = duration
	}

	return config, nil
}

// MergeConfigs merges two Config instances, with values from the override
// configuration taking precedence over the base configuration for non-zero
// values.
//
// The merge rules are:
//   - String fields: override value is used if not empty
//   - Numeric and duration fields: override value is used if not zero
//   - Boolean fields: override value is always used
//   - Slice fields: override value is used if not empty
func MergeConfigs(base, override *Config) *Config {
	if base == nil && override == nil {
		return nil
	}

	if base == nil {
		result := *override

		return &result
	}

	if override == nil {
		result := *base

		return &result
	}

	result := *base

	if override.Binary != "" {
		result.Binary = override.Binary
	}

	if override.Implementation != "" {
		result.Implementation = override.Implementation
	}

	if override.Host != "" {
		result.Host = override.Host
	}

	if override.Port != 0 {
		result.Port = override.Port
	}

	if override.ChainID != 0 {
		result.ChainID = override.ChainID
	}

	if override.Accounts != 0 {
		result.Accounts = override.Accounts
	}

	if override.Balance != 0 {
		result.Balance = override.Balance
	}

	if override.Mnemonic != "" {
		result.Mnemonic = override.Mnemonic
	}

	if override.BlockTime != 0 {
		result.BlockTime = override.BlockTime
	}

	// Boolean fields always take the override value
	// (we can't distinguish between explicitly set to false vs unset)
	result.KeepAlive = override.KeepAlive

	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}

	if len(override.ExtraArgs) > 0 {
		result.ExtraArgs = override.ExtraArgs
	}

	return &result
}
