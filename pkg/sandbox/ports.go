package sandbox

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// FreePort asks the OS for an unused TCP port on host. There is an inherent
// race between releasing the probe listener and the node binding the port,
// but dev nodes bind immediately so collisions are rare in practice.
func FreePort(host string) (int, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, errors.Wrap(err, "failed to probe for a free port")
	}

	defer listener.Close()

	_, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		return 0, errors.Wrap(err, "failed to parse probe listener address")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, errors.Wrap(err, "failed to parse probe listener port")
	}

	return port, nil
}
