package workspaces

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/Edgewood-TD/workspaces-go/pkg/networks"
	"github.com/Edgewood-TD/workspaces-go/pkg/sandbox"
	"github.com/Edgewood-TD/workspaces-go/pkg/sandbox/kurtosis"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultConfigFile is loaded from the working directory when present.
const DefaultConfigFile = ".workspaces.toml"

// metricsNamespace is the prometheus namespace for all harness metrics.
const metricsNamespace = "workspaces"

// Config configures a Runner. The zero value is usable: it selects the
// network from the environment and falls back to sandbox defaults.
type Config struct {
	// Network selects sandbox or testnet mode. Empty means resolve from the
	// WORKSPACES_NETWORK environment variable, defaulting to sandbox.
	Network networks.NetworkName
	// RPCAddress points at an existing node instead of spawning one.
	// Required in testnet mode.
	RPCAddress string
	// RootPrivateKey is the hex key of the funded root account. Required in
	// testnet mode; in sandbox mode the root is derived from the mnemonic.
	RootPrivateKey string
	// InitBalance is the balance newly created accounts are funded with, in
	// whole ether.
	InitBalance uint64
	// SnapshotDir persists the post-init state dump on disk when set, so
	// external tooling can inspect or reuse it.
	SnapshotDir string
	// KeepAlive leaves the base environment running after Close.
	KeepAlive bool
	// Timeout bounds the bootstrap of the base environment.
	Timeout time.Duration
	// Sandbox configures the local node process in sandbox mode.
	Sandbox *sandbox.Config
	// Devnet, when set, replaces the local node process with a kurtosis
	// multi-client devnet in sandbox mode. Forks replay provisioning since
	// real clients carry no dev-state RPC.
	Devnet *kurtosis.Config
	// MetricsRegisterer receives harness collectors. Nil disables metrics.
	MetricsRegisterer prometheus.Registerer
}

// DefaultConfig returns the configuration used when the caller supplies
// nothing: sandbox mode with an anvil node and generous funding.
func DefaultConfig() *Config {
	return &Config{
		InitBalance: 100,
		Timeout:     5 * time.Minute,
		Sandbox:     sandbox.DefaultConfig(),
	}
}

// Validate checks the configuration for the resolved network mode.
func (c *Config) Validate() error {
	switch c.Network {
	case networks.NetworkNameSandbox:
		if c.Sandbox == nil {
			return errors.New("sandbox config is required in sandbox mode")
		}
	case networks.NetworkNameTestnet:
		if c.RPCAddress == "" {
			return ErrRPCAddressRequired
		}

		if c.RootPrivateKey == "" {
			return ErrRootKeyRequired
		}
	default:
		return errors.Wrapf(networks.ErrUnknownNetwork, "%s", c.Network)
	}

	if c.InitBalance == 0 {
		return errors.New("init balance must be positive")
	}

	return nil
}

// ConfigFromEnvironment reads runner configuration from environment
// variables:
//   - WORKSPACES_RPC_ADDRESS: RPC endpoint of an existing node
//   - WORKSPACES_ROOT_KEY: hex private key of the funded root account
//   - WORKSPACES_SNAPSHOT_DIR: directory for persisted state dumps
//   - WORKSPACES_INIT_BALANCE: account funding in whole ether
//
// The network mode itself is resolved separately via networks.FromEnv, and
// sandbox process settings via sandbox.ConfigFromEnvironment.
func ConfigFromEnvironment() (*Config, error) {
	config := &Config{}

	if addr := os.Getenv("WORKSPACES_RPC_ADDRESS"); addr != "" {
		config.RPCAddress = addr
	}

	if key := os.Getenv("WORKSPACES_ROOT_KEY"); key != "" {
		config.RootPrivateKey = key
	}

	if dir := os.Getenv("WORKSPACES_SNAPSHOT_DIR"); dir != "" {
		config.SnapshotDir = dir
	}

	if balance := os.Getenv("WORKSPACES_INIT_BALANCE"); balance != "" {
		parsed, err := strconv.ParseUint(balance, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid WORKSPACES_INIT_BALANCE value %q", balance)
		}

		config.InitBalance = parsed
	}

	sandboxConfig, err := sandbox.ConfigFromEnvironment()
	if err != nil {
		return nil, err
	}

	config.Sandbox = sandboxConfig
	config.KeepAlive = sandboxConfig.KeepAlive
	config.Timeout = sandboxConfig.Timeout

	return config, nil
}

// MergeConfigs merges two Config instances, with non-zero values from the
// override taking precedence. Boolean fields always take the override value.
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

	if override.Network != "" {
		result.Network = override.Network
	}

	if override.RPCAddress != "" {
		result.RPCAddress = override.RPCAddress
	}

	if override.RootPrivateKey != "" {
		result.RootPrivateKey = override.RootPrivateKey
	}

	if override.InitBalance != 0 {
		result.InitBalance = override.InitBalance
	}

	if override.SnapshotDir != "" {
		result.SnapshotDir = override.SnapshotDir
	}

	result.KeepAlive = override.KeepAlive

	if override.Timeout != 0 {
		result.Timeout = override.Timeout
	}

	if override.Sandbox != nil {
		result.Sandbox = sandbox.MergeConfigs(base.Sandbox, override.Sandbox)
	}

	if override.Devnet != nil {
		result.Devnet = override.Devnet
	}

	if override.MetricsRegisterer != nil {
		result.MetricsRegisterer = override.MetricsRegisterer
	}

	return &result
}

// fileConfig is the on-disk TOML form of Config. Durations are strings so
// the file stays human-editable.
type fileConfig struct {
	Network        string            `toml:"network"`
	RPCAddress     string            `toml:"rpc_address"`
	RootPrivateKey string            `toml:"root_private_key"`
	InitBalance    uint64            `toml:"init_balance"`
	SnapshotDir    string            `toml:"snapshot_dir"`
	KeepAlive      bool              `toml:"keep_alive"`
	Timeout        string            `toml:"timeout"`
	Sandbox        fileSandboxConfig `toml:"sandbox"`
}

type fileSandboxConfig struct {
	Binary         string   `toml:"binary"`
	Implementation string   `toml:"implementation"`
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	ChainID        uint64   `toml:"chain_id"`
	Accounts       int      `toml:"accounts"`
	Balance        uint64   `toml:"balance"`
	Mnemonic       string   `toml:"mnemonic"`
	BlockTime      int      `toml:"block_time"`
	ExtraArgs      []string `toml:"extra_args"`
}

func (fc fileSandboxConfig) isZero() bool {
	return fc.Binary == "" && fc.Implementation == "" && fc.Host == "" &&
		fc.Port == 0 && fc.ChainID == 0 && fc.Accounts == 0 && fc.Balance == 0 &&
		fc.Mnemonic == "" && fc.BlockTime == 0 && len(fc.ExtraArgs) == 0
}

// LoadConfigFile reads a runner config from a TOML file.
func LoadConfigFile(path string) (*Config, error) {
	var fc fileConfig

	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %s", path)
	}

	config := &Config{
		Network:        networks.NetworkName(fc.Network),
		RPCAddress:     fc.RPCAddress,
		RootPrivateKey: fc.RootPrivateKey,
		InitBalance:    fc.InitBalance,
		SnapshotDir:    fc.SnapshotDir,
		KeepAlive:      fc.KeepAlive,
	}

	if fc.Timeout != "" {
		timeout, err := time.ParseDuration(fc.Timeout)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid timeout in %s", path)
		}

		config.Timeout = timeout
	}

	if !fc.Sandbox.isZero() {
		config.Sandbox = &sandbox.Config{
			Binary:         fc.Sandbox.Binary,
			Implementation: clients.Client(fc.Sandbox.Implementation),
			Host:           fc.Sandbox.Host,
			Port:           fc.Sandbox.Port,
			ChainID:        fc.Sandbox.ChainID,
			Accounts:       fc.Sandbox.Accounts,
			Balance:        fc.Sandbox.Balance,
			Mnemonic:       fc.Sandbox.Mnemonic,
			BlockTime:      fc.Sandbox.BlockTime,
			ExtraArgs:      fc.Sandbox.ExtraArgs,
		}
	}

	return config, nil
}

// ResolveConfig builds the effective configuration: defaults, then the
// config file when present, then the environment, then explicit values. The
// network mode falls back to the WORKSPACES_NETWORK variable when nothing
// else sets it.
func ResolveConfig(explicit *Config) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(DefaultConfigFile); err == nil {
		fromFile, err := LoadConfigFile(DefaultConfigFile)
		if err != nil {
			return nil, err
		}

		config = MergeConfigs(config, fromFile)
	}

	fromEnv, err := ConfigFromEnvironment()
	if err != nil {
		return nil, err
	}

	// The merge cannot tell an unset boolean from an explicit false, so the
	// environment only overrides keep-alive when the variable is present.
	if os.Getenv("WORKSPACES_KEEP_ALIVE") == "" {
		fromEnv.KeepAlive = config.KeepAlive

		if fromEnv.Sandbox != nil && config.Sandbox != nil {
			fromEnv.Sandbox.KeepAlive = config.Sandbox.KeepAlive
		}
	}

	config = MergeConfigs(config, fromEnv)
	config = MergeConfigs(config, explicit)

	if config.Network == "" {
		network, err := networks.FromEnv()
		if err != nil {
			return nil, err
		}

		config.Network = network
	} else {
		network, err := networks.Parse(string(config.Network))
		if err != nil {
			return nil, err
		}

		config.Network = network
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
