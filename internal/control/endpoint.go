package control

import (
	"errors"
	"fmt"

	"github.com/xvzc/xrayctl/internal/netutil"
)

// Endpoint is the address of the proxy's API listener.
type Endpoint struct {
	Host string
	Port uint16
}

// ParseEndpoint reads "host:port".
func ParseEndpoint(s string) (Endpoint, error) {
	host, port, err := netutil.ParseHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", s, err)
	}

	return Endpoint{Host: host, Port: port}, nil
}

func (e Endpoint) String() string {
	return netutil.JoinHostPort(e.Host, e.Port)
}

func (e Endpoint) Validate() error {
	if e.Host == "" {
		return errors.New("endpoint host is empty")
	}

	if e.Port == 0 {
		return errors.New("endpoint port must be 1-65535")
	}

	return nil
}

// target names the endpoint for grpc.NewClient. The passthrough scheme hands
// "host:port" to the dialer untouched, so a custom resolver sees the host name.
func (e Endpoint) target() string {
	return "passthrough:///" + e.String()
}
