package sandbox

import (
	"os/exec"

	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/pkg/errors"
)

// ErrBinaryNotFound is returned when no sandbox node binary can be resolved.
// Callers typically skip sandbox tests when they see this error.
var ErrBinaryNotFound = errors.New("sandbox binary not found")

// DefaultBinaryName returns the executable name a client implementation is
// normally installed as, or "" when the implementation cannot back a local
// sandbox.
func DefaultBinaryName(implementation clients.Client) string {
	switch implementation {
	case clients.ClientAnvil:
		return "anvil"
	case clients.ClientHardhat:
		return "hardhat"
	case clients.ClientGeth:
		return "geth"
	default:
		return ""
	}
}

// ResolveBinary resolves the node binary to launch. An explicit Config.Binary
// wins; otherwise the implementation's default binary name is searched for on
// PATH.
func ResolveBinary(config *Config) (string, error) {
	if config.Binary != "" {
		path, err := exec.LookPath(config.Binary)
		if err != nil {
			return "", errors.Wrapf(ErrBinaryNotFound, "%s", config.Binary)
		}

		return path, nil
	}

	name := DefaultBinaryName(config.Implementation)
	if name == "" {
		return "", errors.Wrapf(ErrBinaryNotFound, "no default binary for %s", config.Implementation)
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", errors.Wrapf(ErrBinaryNotFound, "%s is not on PATH (install foundry or set WORKSPACES_SANDBOX_BINARY)", name)
	}

	return path, nil
}

// Available reports whether a sandbox binary can be resolved for the config.
func Available(config *Config) bool {
	_, err := ResolveBinary(config)

	return err == nil
}
