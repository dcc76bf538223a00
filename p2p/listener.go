package p2p

import (
	"context"
	"net"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ParseAddr splits "tcp://host:port" or "unix:///path" into network and address.
// A bare address is taken as tcp.
func ParseAddr(addr string) (string, string, error) {
	parts := strings.SplitN(addr, "://", 2)
	if len(parts) == 1 {
		return "tcp", addr, nil
	}
	switch parts[0] {
	case "tcp", "unix":
		if parts[1] == "" {
			return "", "", errors.Errorf("empty address in %q", addr)
		}
		return parts[0], parts[1], nil
	default:
		return "", "", errors.Errorf("unsupported network %q in %q", parts[0], addr)
	}
}

// Listen opens a listener on addr, removing a stale unix socket first.
func Listen(addr string) (net.Listener, error) {
	network, address, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}
	if network == "unix" {
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "remove stale socket %s", address)
		}
	}
	return net.Listen(network, address)
}

func Dial(ctx context.Context, addr string) (net.Conn, error) {
	network, address, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}
