package clients

import "strings"

// Client represents an execution client implementation.
type Client string

const (
	// ClientUnknown represents an unknown or unidentified client.
	ClientUnknown Client = "unknown"
	// ClientAnvil represents the Foundry anvil development node.
	ClientAnvil Client = "anvil"
	// ClientHardhat represents the Hardhat network development node.
	ClientHardhat Client = "hardhat"
	// ClientGeth represents the Geth execution client.
	ClientGeth Client = "geth"
	// ClientBesu represents the Besu execution client.
	ClientBesu Client = "besu"
	// ClientNethermind represents the Nethermind execution client.
	ClientNethermind Client = "nethermind"
	// ClientErigon represents the Erigon execution client.
	ClientErigon Client = "erigon"
	// ClientReth represents the Reth execution client.
	ClientReth Client = "reth"
	// ClientEthereumJS represents the EthereumJS execution client.
	ClientEthereumJS Client = "ethereumjs"
)

// AllSandboxClients contains client implementations that can back a local
// disposable sandbox.
var AllSandboxClients = []Client{
	ClientAnvil,
	ClientHardhat,
}

// AllExecutionClients contains all known execution client implementations.
var AllExecutionClients = []Client{
	ClientAnvil,
	ClientHardhat,
	ClientGeth,
	ClientBesu,
	ClientNethermind,
	ClientErigon,
	ClientReth,
	ClientEthereumJS,
}

// AllClients contains all known client implementations.
var AllClients = []Client{
	ClientUnknown,
	ClientAnvil,
	ClientHardhat,
	ClientGeth,
	ClientBesu,
	ClientNethermind,
	ClientErigon,
	ClientReth,
	ClientEthereumJS,
}

// clientIdentifiers maps client-specific strings to their respective Client type.
// Hardhat reports itself as "HardhatNetwork".
var clientIdentifiers = map[string]Client{
	"anvil":      ClientAnvil,
	"hardhat":    ClientHardhat,
	"geth":       ClientGeth,
	"besu":       ClientBesu,
	"nethermind": ClientNethermind,
	"erigon":     ClientErigon,
	"reth":       ClientReth,
	"ethereumjs": ClientEthereumJS,
}

// ClientFromString identifies an execution client from a string identifier.
// It performs a case-insensitive search for known client names within the input string.
// Returns ClientUnknown if no known client is identified.
func ClientFromString(client string) Client {
	asLower := strings.ToLower(client)

	// EthereumJS appears inside Hardhat version strings
	// ("HardhatNetwork/2.22.5/@ethereumjs/vm/7.2.1"), so check hardhat first.
	if strings.Contains(asLower, "hardhat") {
		return ClientHardhat
	}

	for identifier, clientType := range clientIdentifiers {
		if strings.Contains(asLower, identifier) {
			return clientType
		}
	}

	return ClientUnknown
}

// SupportsStateDump reports whether the client can serialize its full world
// state over RPC (anvil_dumpState / anvil_loadState). Only anvil can.
func SupportsStateDump(client Client) bool {
	return client == ClientAnvil
}

// SupportsStatePatch reports whether the client accepts direct state writes
// (setBalance, setCode, setStorageAt) over its dev RPC namespace.
func SupportsStatePatch(client Client) bool {
	return client == ClientAnvil || client == ClientHardhat
}

// SupportsTimeTravel reports whether the client accepts evm_increaseTime and
// evm_mine.
func SupportsTimeTravel(client Client) bool {
	return client == ClientAnvil || client == ClientHardhat
}

// SupportsSnapshot reports whether the client accepts evm_snapshot and
// evm_revert.
func SupportsSnapshot(client Client) bool {
	return client == ClientAnvil || client == ClientHardhat
}

// DevNamespace returns the RPC method prefix for the client's state
// manipulation namespace, or "" when the client has none.
func DevNamespace(client Client) string {
	switch client {
	case ClientAnvil:
		return "anvil"
	case ClientHardhat:
		return "hardhat"
	default:
		return ""
	}
}

// ParseClientVersion parses the web3_clientVersion string.
// Example inputs from real implementations:
// - "anvil/v0.2.0" (no platform suffix)
// - "HardhatNetwork/2.22.5/@ethereumjs/vm/7.2.1" (no 'v' prefix)
// - "Geth/v1.16.4-stable-41714b49/linux-amd64/go1.24.7"
// - "erigon/3.0.14/linux-amd64/go1.23.11" (lowercase, no 'v' prefix)
// - "Nethermind/v1.32.4+1c4c7c0a/linux-x64/dotnet9.0.7" (uses + for commit hash)
// - "besu/v25.7.0/linux-x86_64/openjdk-java-21" (lowercase)
// - "reth/v1.8.2-9c30bf7/x86_64-unknown-linux-gnu" (uses - for commit hash)
// Returns: implementation, version, versionMajor, versionMinor, versionPatch.
func ParseClientVersion(clientVersion string) (implementation, version, versionMajor, versionMinor, versionPatch string) {
	if clientVersion == "" {
		return "", "", "", "", ""
	}

	// Split by "/" to get parts
	parts := splitVersionString(clientVersion, "/")
	if len(parts) == 0 {
		return clientVersion, "", "", "", ""
	}

	// First part is the implementation
	implementation = parts[0]

	// Second part is typically the version
	if len(parts) < 2 {
		return implementation, "", "", "", ""
	}

	versionStr := parts[1]

	// Remove "v" prefix if present
	if versionStr != "" && versionStr[0] == 'v' {
		versionStr = versionStr[1:]
	}

	// Parse semantic version (major.minor.patch)
	// Version might have suffixes like "-stable-41714b49" or "+abcdef"
	// Split on "-" or "+" to get the core version
	coreVersion := versionStr

	for i, c := range versionStr {
		if c == '-' || c == '+' {
			coreVersion = versionStr[:i]

			break
		}
	}

	// Split by "." to get major.minor.patch
	versionParts := splitVersionString(coreVersion, ".")

	if len(versionParts) > 0 {
		versionMajor = versionParts[0]
	}

	if len(versionParts) > 1 {
		versionMinor = versionParts[1]
	}

	if len(versionParts) > 2 {
		versionPatch = versionParts[2]
	}

	version = versionStr

	return implementation, version, versionMajor, versionMinor, versionPatch
}

// splitVersionString is a helper to split strings by a separator.
func splitVersionString(s, sep string) []string {
	if s == "" {
		return nil
	}

	var parts []string

	start := 0

	for i := 0; i <= len(s)-len(sep); i++ {
		if s[i:i+len(sep)] == sep {
			if part := s[start:i]; part != "" {
				parts = append(parts, part)
			}

			start = i + len(sep)
			i += len(sep) - 1
		}
	}

	if part := s[start:]; part != "" {
		parts = append(parts, part)
	}

	return parts
}
