package kurtosis

import (
	"net"
	"runtime"
)

// GetNATExitIP returns the IP containers use to reach the host. On macOS and
// Windows, Docker Desktop forwards localhost. On Linux the docker bridge
// gateway is used, typically 172.17.0.1.
func GetNATExitIP() string {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		return "127.0.0.1"
	}

	iface, err := net.InterfaceByName("docker0")
	if err == nil {
		addrs, err := iface.Addrs()
		if err == nil {
			for _, addr := range addrs {
				if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
					return ipnet.IP.String()
				}
			}
		}
	}

	// Docker's default bridge gateway unless configured otherwise.
	return "172.17.0.1"
}
