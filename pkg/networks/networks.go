package networks

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvVar is the environment variable that selects the network mode for a
// test run. An empty or unset value selects the sandbox.
const EnvVar = "WORKSPACES_NETWORK"

// NetworkName represents the name of a network a workspace can be bound to.
type NetworkName string

// Network represents a network a workspace can run against.
type Network struct {
	Name NetworkName
	// ID is the chain ID the network is expected to report.
	ID uint64
	// Local is true for disposable, locally managed networks.
	Local bool
}

// Define known networks.
var (
	NetworkNameNone    NetworkName = "none"
	NetworkNameUnknown NetworkName = "unknown"
	NetworkNameSandbox NetworkName = "sandbox"
	NetworkNameTestnet NetworkName = "testnet"
	NetworkNameMainnet NetworkName = "mainnet"
)

// SandboxChainID is the chain ID sandbox nodes are started with. It is the
// conventional dev-chain ID used by anvil and hardhat.
const SandboxChainID = 31337

// GethDevChainID is the chain ID reported by geth in --dev mode.
const GethDevChainID = 1337

// NetworkIDs maps chain IDs to network names. Local dev chains map to the
// sandbox regardless of which client produced them.
var NetworkIDs = map[uint64]NetworkName{
	SandboxChainID: NetworkNameSandbox,
	GethDevChainID: NetworkNameSandbox,
	1:              NetworkNameMainnet,
	11155111:       NetworkNameTestnet,
	17000:          NetworkNameTestnet,
	560048:         NetworkNameTestnet,
}

var (
	ErrNetworkNotFound = errors.New("network not found")
	ErrUnknownNetwork  = errors.New("unknown network")

	KnownNetworks = []Network{
		{
			Name:  NetworkNameSandbox,
			ID:    SandboxChainID,
			Local: true,
		},
		{
			Name: NetworkNameTestnet,
			// Testnet chain IDs vary by deployment; 0 means "derived at
			// connection time".
			ID:    0,
			Local: false,
		},
		{
			Name:  NetworkNameMainnet,
			ID:    1,
			Local: false,
		},
	}
)

// FromEnv resolves the network mode from the WORKSPACES_NETWORK environment
// variable. An unset or empty variable selects the sandbox. "sandbox" and
// "testnet" pass through unchanged. Any other value is an error.
func FromEnv() (NetworkName, error) {
	return Parse(os.Getenv(EnvVar))
}

// Parse normalizes and validates a network mode string. An empty string
// selects the sandbox.
func Parse(value string) (NetworkName, error) {
	switch NetworkName(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return NetworkNameSandbox, nil
	case NetworkNameSandbox:
		return NetworkNameSandbox, nil
	case NetworkNameTestnet:
		return NetworkNameTestnet, nil
	default:
		return NetworkNameUnknown, fmt.Errorf("%w: %q (expected %q or %q)", ErrUnknownNetwork, value, NetworkNameSandbox, NetworkNameTestnet)
	}
}

// DeriveFromID derives a network from a chain ID.
func DeriveFromID(id uint64) *Network {
	network := &Network{Name: NetworkNameUnknown, ID: id}
	if name, ok := NetworkIDs[id]; ok {
		network.Name = name
		network.Local = name == NetworkNameSandbox
	}

	return network
}

// FindByName returns a network with the given name or an error if not found.
func FindByName(name NetworkName) (*Network, error) {
	for _, network := range KnownNetworks {
		if network.Name == name {
			return &network, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNetworkNotFound, name)
}
