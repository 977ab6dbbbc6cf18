package networks

import (
	"errors"
	"os"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		expectedName NetworkName
		expectErr    bool
	}{
		{
			name:         "empty value selects sandbox",
			value:        "",
			expectedName: NetworkNameSandbox,
		},
		{
			name:         "sandbox passes through",
			value:        "sandbox",
			expectedName: NetworkNameSandbox,
		},
		{
			name:         "testnet passes through",
			value:        "testnet",
			expectedName: NetworkNameTestnet,
		},
		{
			name:         "case is normalized",
			value:        "Sandbox",
			expectedName: NetworkNameSandbox,
		},
		{
			name:         "whitespace is trimmed",
			value:        " testnet ",
			expectedName: NetworkNameTestnet,
		},
		{
			name:      "mainnet is not a run mode",
			value:     "mainnet",
			expectErr: true,
		},
		{
			name:      "arbitrary value is rejected",
			value:     "bogus",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, err := Parse(tt.value)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("Parse(%q) error = nil, want error", tt.value)
				}
				if !errors.Is(err, ErrUnknownNetwork) {
					t.Errorf("Parse(%q) error = %v, want ErrUnknownNetwork", tt.value, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("Parse(%q) error = %v, want nil", tt.value, err)
			}
			if name != tt.expectedName {
				t.Errorf("Parse(%q) = %v, want %v", tt.value, name, tt.expectedName)
			}
		})
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		unset        bool
		expectedName NetworkName
		expectErr    bool
	}{
		{
			name:         "unset selects sandbox",
			unset:        true,
			expectedName: NetworkNameSandbox,
		},
		{
			name:         "empty selects sandbox",
			value:        "",
			expectedName: NetworkNameSandbox,
		},
		{
			name:         "sandbox passes through",
			value:        "sandbox",
			expectedName: NetworkNameSandbox,
		},
		{
			name:         "testnet passes through",
			value:        "testnet",
			expectedName: NetworkNameTestnet,
		},
		{
			name:      "unknown value is rejected",
			value:     "devnet-7",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.unset {
				// t.Setenv registers the restore; unset on top of it.
				t.Setenv(EnvVar, "")
				if err := os.Unsetenv(EnvVar); err != nil {
					t.Fatalf("unsetenv failed: %v", err)
				}
			} else {
				t.Setenv(EnvVar, tt.value)
			}

			name, err := FromEnv()
			if tt.expectErr {
				if err == nil {
					t.Fatalf("FromEnv() error = nil, want error")
				}
				if !errors.Is(err, ErrUnknownNetwork) {
					t.Errorf("FromEnv() error = %v, want ErrUnknownNetwork", err)
				}

				return
			}

			if err != nil {
				t.Fatalf("FromEnv() error = %v, want nil", err)
			}
			if name != tt.expectedName {
				t.Errorf("FromEnv() = %v, want %v", name, tt.expectedName)
			}
		})
	}
}

func TestDeriveFromID(t *testing.T) {
	tests := []struct {
		name         string
		id           uint64
		expectedName NetworkName
		expectLocal  bool
	}{
		{
			name:         "sandbox chain ID",
			id:           31337,
			expectedName: NetworkNameSandbox,
			expectLocal:  true,
		},
		{
			name:         "geth dev chain ID maps to sandbox",
			id:           1337,
			expectedName: NetworkNameSandbox,
			expectLocal:  true,
		},
		{
			name:         "mainnet ID",
			id:           1,
			expectedName: NetworkNameMainnet,
		},
		{
			name:         "sepolia ID maps to testnet",
			id:           11155111,
			expectedName: NetworkNameTestnet,
		},
		{
			name:         "holesky ID maps to testnet",
			id:           17000,
			expectedName: NetworkNameTestnet,
		},
		{
			name:         "unknown ID",
			id:           999999,
			expectedName: NetworkNameUnknown,
		},
		{
			name:         "zero ID",
			id:           0,
			expectedName: NetworkNameUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			network := DeriveFromID(tt.id)
			if network.Name != tt.expectedName {
				t.Errorf("DeriveFromID() name = %v, want %v", network.Name, tt.expectedName)
			}
			if network.ID != tt.id {
				t.Errorf("DeriveFromID() ID = %v, want %v", network.ID, tt.id)
			}
			if network.Local != tt.expectLocal {
				t.Errorf("DeriveFromID() Local = %v, want %v", network.Local, tt.expectLocal)
			}
		})
	}
}

func TestFindByName(t *testing.T) {
	tests := []struct {
		name        string
		networkName NetworkName
		expectErr   bool
		expectedID  uint64
	}{
		{
			name:        "sandbox",
			networkName: NetworkNameSandbox,
			expectedID:  31337,
		},
		{
			name:        "testnet",
			networkName: NetworkNameTestnet,
			expectedID:  0,
		},
		{
			name:        "mainnet",
			networkName: NetworkNameMainnet,
			expectedID:  1,
		},
		{
			name:        "unknown name",
			networkName: NetworkName("devnet"),
			expectErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			network, err := FindByName(tt.networkName)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("FindByName(%q) error = nil, want error", tt.networkName)
				}
				if !errors.Is(err, ErrNetworkNotFound) {
					t.Errorf("FindByName(%q) error = %v, want ErrNetworkNotFound", tt.networkName, err)
				}

				return
			}

			if err != nil {
				t.Fatalf("FindByName(%q) error = %v, want nil", tt.networkName, err)
			}
			if network.ID != tt.expectedID {
				t.Errorf("FindByName(%q) ID = %v, want %v", tt.networkName, network.ID, tt.expectedID)
			}
		})
	}
}

func TestNetworkConstants(t *testing.T) {
	expectedConstants := []NetworkName{
		NetworkNameNone,
		NetworkNameUnknown,
		NetworkNameSandbox,
		NetworkNameTestnet,
		NetworkNameMainnet,
	}

	expectedValues := []string{
		"none",
		"unknown",
		"sandbox",
		"testnet",
		"mainnet",
	}

	for i, constant := range expectedConstants {
		if string(constant) != expectedValues[i] {
			t.Errorf("Network constant %v = %v, want %v", constant, string(constant), expectedValues[i])
		}
	}
}

func TestNetworkMapsConsistency(t *testing.T) {
	for id, name := range NetworkIDs {
		network := DeriveFromID(id)
		if network.Name != name {
			t.Errorf(
				"Inconsistent network name for ID %d: NetworkIDs has %s, DeriveFromID returns %s",
				id,
				name,
				network.Name,
			)
		}
	}
}
