package clients

import (
	"testing"
)

func TestClientFromString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Client
	}{
		// Exact matches (case-insensitive)
		{
			name:     "anvil exact match",
			input:    "anvil",
			expected: ClientAnvil,
		},
		{
			name:     "anvil uppercase",
			input:    "ANVIL",
			expected: ClientAnvil,
		},
		{
			name:     "hardhat exact match",
			input:    "hardhat",
			expected: ClientHardhat,
		},
		{
			name:     "geth exact match",
			input:    "geth",
			expected: ClientGeth,
		},
		{
			name:     "besu exact match",
			input:    "besu",
			expected: ClientBesu,
		},
		{
			name:     "nethermind exact match",
			input:    "nethermind",
			expected: ClientNethermind,
		},
		{
			name:     "erigon exact match",
			input:    "erigon",
			expected: ClientErigon,
		},
		{
			name:     "reth exact match",
			input:    "reth",
			expected: ClientReth,
		},
		{
			name:     "ethereumjs exact match",
			input:    "ethereumjs",
			expected: ClientEthereumJS,
		},
		// Partial matches (contains)
		{
			name:     "anvil version string",
			input:    "anvil/v0.2.0",
			expected: ClientAnvil,
		},
		{
			name:     "hardhat network version string",
			input:    "HardhatNetwork/2.22.5/@ethereumjs/vm/7.2.1",
			expected: ClientHardhat,
		},
		{
			name:     "geth in full string",
			input:    "Geth/v1.13.5-stable-1234567/linux-amd64/go1.21.4",
			expected: ClientGeth,
		},
		{
			name:     "reth with commit hash",
			input:    "reth/v1.8.2-9c30bf7/x86_64-unknown-linux-gnu",
			expected: ClientReth,
		},
		{
			name:     "nethermind with metadata",
			input:    "Nethermind/v1.32.4+1c4c7c0a/linux-x64/dotnet9.0.7",
			expected: ClientNethermind,
		},
		// No matches
		{
			name:     "empty string",
			input:    "",
			expected: ClientUnknown,
		},
		{
			name:     "unrecognized client",
			input:    "someotherclient/v1.0.0",
			expected: ClientUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClientFromString(tt.input)
			if result != tt.expected {
				t.Errorf("ClientFromString(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestParseClientVersion(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		implementation string
		version        string
		versionMajor   string
		versionMinor   string
		versionPatch   string
	}{
		{
			name:           "anvil",
			input:          "anvil/v0.2.0",
			implementation: "anvil",
			version:        "0.2.0",
			versionMajor:   "0",
			versionMinor:   "2",
			versionPatch:   "0",
		},
		{
			name:           "hardhat without v prefix",
			input:          "HardhatNetwork/2.22.5/@ethereumjs/vm/7.2.1",
			implementation: "HardhatNetwork",
			version:        "2.22.5",
			versionMajor:   "2",
			versionMinor:   "22",
			versionPatch:   "5",
		},
		{
			name:           "geth with stable suffix",
			input:          "Geth/v1.16.4-stable-41714b49/linux-amd64/go1.24.7",
			implementation: "Geth",
			version:        "1.16.4-stable-41714b49",
			versionMajor:   "1",
			versionMinor:   "16",
			versionPatch:   "4",
		},
		{
			name:           "nethermind with plus commit",
			input:          "Nethermind/v1.32.4+1c4c7c0a/linux-x64/dotnet9.0.7",
			implementation: "Nethermind",
			version:        "1.32.4+1c4c7c0a",
			versionMajor:   "1",
			versionMinor:   "32",
			versionPatch:   "4",
		},
		{
			name:           "erigon lowercase no v",
			input:          "erigon/3.0.14/linux-amd64/go1.23.11",
			implementation: "erigon",
			version:        "3.0.14",
			versionMajor:   "3",
			versionMinor:   "0",
			versionPatch:   "14",
		},
		{
			name:           "reth with dash commit",
			input:          "reth/v1.8.2-9c30bf7/x86_64-unknown-linux-gnu",
			implementation: "reth",
			version:        "1.8.2-9c30bf7",
			versionMajor:   "1",
			versionMinor:   "8",
			versionPatch:   "2",
		},
		{
			name:           "empty string",
			input:          "",
			implementation: "",
		},
		{
			name:           "implementation only",
			input:          "anvil",
			implementation: "anvil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			impl, version, major, minor, patch := ParseClientVersion(tt.input)
			if impl != tt.implementation {
				t.Errorf("ParseClientVersion(%q) implementation = %q, want %q", tt.input, impl, tt.implementation)
			}
			if version != tt.version {
				t.Errorf("ParseClientVersion(%q) version = %q, want %q", tt.input, version, tt.version)
			}
			if major != tt.versionMajor {
				t.Errorf("ParseClientVersion(%q) major = %q, want %q", tt.input, major, tt.versionMajor)
			}
			if minor != tt.versionMinor {
				t.Errorf("ParseClientVersion(%q) minor = %q, want %q", tt.input, minor, tt.versionMinor)
			}
			if patch != tt.versionPatch {
				t.Errorf("ParseClientVersion(%q) patch = %q, want %q", tt.input, patch, tt.versionPatch)
			}
		})
	}
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		client     Client
		stateDump  bool
		statePatch bool
		timeTravel bool
		snapshot   bool
		namespace  string
	}{
		{client: ClientAnvil, stateDump: true, statePatch: true, timeTravel: true, snapshot: true, namespace: "anvil"},
		{client: ClientHardhat, stateDump: false, statePatch: true, timeTravel: true, snapshot: true, namespace: "hardhat"},
		{client: ClientGeth},
		{client: ClientReth},
		{client: ClientUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.client), func(t *testing.T) {
			if got := SupportsStateDump(tt.client); got != tt.stateDump {
				t.Errorf("SupportsStateDump(%v) = %v, want %v", tt.client, got, tt.stateDump)
			}
			if got := SupportsStatePatch(tt.client); got != tt.statePatch {
				t.Errorf("SupportsStatePatch(%v) = %v, want %v", tt.client, got, tt.statePatch)
			}
			if got := SupportsTimeTravel(tt.client); got != tt.timeTravel {
				t.Errorf("SupportsTimeTravel(%v) = %v, want %v", tt.client, got, tt.timeTravel)
			}
			if got := SupportsSnapshot(tt.client); got != tt.snapshot {
				t.Errorf("SupportsSnapshot(%v) = %v, want %v", tt.client, got, tt.snapshot)
			}
			if got := DevNamespace(tt.client); got != tt.namespace {
				t.Errorf("DevNamespace(%v) = %q, want %q", tt.client, got, tt.namespace)
			}
		})
	}
}
