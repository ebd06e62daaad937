package bridge

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// DefaultEndpoint is the socket name used when none is configured.
const DefaultEndpoint = "befunge.io"

// Endpoint is a resolved network address.
type Endpoint struct {
	Network string // "unix" or "tcp"
	Address string
}

func (e Endpoint) String() string {
	return e.Network + ":" + e.Address
}

// ParseEndpoint resolves an endpoint name:
//
//	name          unix socket in the temp directory
//	@name         Linux abstract unix socket
//	dir/name      unix socket at that path
//	tcp:host:port TCP address
func ParseEndpoint(name string) Endpoint {
	switch {
	case name == "":
		name = DefaultEndpoint
	case strings.HasPrefix(name, "tcp:"):
		return Endpoint{Network: "tcp", Address: strings.TrimPrefix(name, "tcp:")}
	case strings.HasPrefix(name, "@"):
		return Endpoint{Network: "unix", Address: name}
	case strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator):
		return Endpoint{Network: "unix", Address: name}
	}
	return Endpoint{Network: "unix", Address: filepath.Join(os.TempDir(), name)}
}

// Listen opens a listener on the endpoint, removing a stale socket file
// left behind by a previous companion.
func Listen(name string) (net.Listener, error) {
	ep := ParseEndpoint(name)
	if ep.Network == "unix" && !strings.HasPrefix(ep.Address, "@") {
		os.Remove(ep.Address)
	}
	return net.Listen(ep.Network, ep.Address)
}

// DialConn opens the raw connection to an endpoint.
func DialConn(ctx context.Context, name string) (net.Conn, error) {
	ep := ParseEndpoint(name)
	var d net.Dialer
	conn, err := d.DialContext(ctx, ep.Network, ep.Address)
	if err != nil {
		return nil, &ConnectError{Endpoint: ep.String(), Err: err}
	}
	return conn, nil
}
