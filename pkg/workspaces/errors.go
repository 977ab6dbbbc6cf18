package workspaces

import "github.com/pkg/errors"

var (
	// ErrNoInitFn is returned by the constructors when no init callback is
	// supplied.
	ErrNoInitFn = errors.New("an init function is required")
	// ErrRunnerClosed is returned by Run after Close.
	ErrRunnerClosed = errors.New("runner is closed")
	// ErrNotSandbox is returned by sandbox-only workspace helpers when the
	// runner is bound to a remote network.
	ErrNotSandbox = errors.New("operation requires a sandbox network")
	// ErrRootKeyRequired is returned when a testnet config carries no root
	// account key to fund provisioning from.
	ErrRootKeyRequired = errors.New("a root private key is required on testnet")
	// ErrRPCAddressRequired is returned when a testnet config carries no RPC
	// address.
	ErrRPCAddressRequired = errors.New("an RPC address is required on testnet")
	// ErrContractExists is returned when deploying under a taken label.
	ErrContractExists = errors.New("contract already exists")
	// ErrContractNotFound is returned when looking up an unknown contract
	// label.
	ErrContractNotFound = errors.New("contract not found")
)
