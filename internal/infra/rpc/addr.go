package rpc

import (
	"errors"
	"strings"
)

// splitAddress accepts host:port, tcp://host:port or unix:///path.
func splitAddress(addr string) (network, address string, err error) {
	trimmed := strings.TrimSpace(addr)
	switch {
	case trimmed == "":
		return "", "", errors.New("rpc address is required")
	case strings.HasPrefix(trimmed, "unix://"):
		path := strings.TrimPrefix(trimmed, "unix://")
		if path == "" {
			return "", "", errors.New("rpc unix socket path is empty")
		}
		return "unix", path, nil
	case strings.HasPrefix(trimmed, "tcp://"):
		host := strings.TrimPrefix(trimmed, "tcp://")
		if host == "" {
			return "", "", errors.New("rpc tcp address is empty")
		}
		return "tcp", host, nil
	default:
		return "tcp", trimmed, nil
	}
}

// dialTarget turns a configured address into a grpc target.
func dialTarget(addr string) (string, error) {
	network, address, err := splitAddress(addr)
	if err != nil {
		return "", err
	}
	if network == "unix" {
		return "unix://" + address, nil
	}
	return address, nil
}
