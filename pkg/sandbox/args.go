package sandbox

import (
	"strconv"

	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/pkg/errors"
)

// buildArgs renders the command line for the configured implementation. Port
// is passed separately because a zero Config.Port is resolved to a free port
// at start time.
func buildArgs(config *Config, port int) ([]string, error) {
	switch config.Implementation {
	case clients.ClientAnvil:
		args := []string{
			"--host", config.Host,
			"--port", strconv.Itoa(port),
			"--chain-id", strconv.FormatUint(config.ChainID, 10),
			"--accounts", strconv.Itoa(config.Accounts),
			"--balance", strconv.FormatUint(config.Balance, 10),
			"--mnemonic", config.Mnemonic,
		}

		if config.BlockTime > 0 {
			args = append(args, "--block-time", strconv.Itoa(config.BlockTime))
		}

		return append(args, config.ExtraArgs...), nil
	case clients.ClientHardhat:
		args := []string{
			"node",
			"--hostname", config.Host,
			"--port", strconv.Itoa(port),
		}

		return append(args, config.ExtraArgs...), nil
	case clients.ClientGeth:
		// Geth dev mode ignores chain ID and mnemonic settings; it funds a
		// single ephemeral developer account instead.
		args := []string{
			"--dev",
			"--http",
			"--http.addr", config.Host,
			"--http.port", strconv.Itoa(port),
			"--http.api", "eth,net,web3,debug",
		}

		if config.BlockTime > 0 {
			args = append(args, "--dev.period", strconv.Itoa(config.BlockTime))
		}

		return append(args, config.ExtraArgs...), nil
	default:
		return nil, errors.Errorf("cannot build a sandbox command line for %s", config.Implementation)
	}
}
