package netutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// HostResolver looks up the addresses of a host name.
type HostResolver interface {
	Resolve(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Dialer connects to "host:port" addresses by resolving the host with its own
// resolver and racing a dial to every returned address.
type Dialer struct {
	resolver HostResolver
	timeout  time.Duration
}

func NewDialer(resolver HostResolver, timeout time.Duration) *Dialer {
	return &Dialer{resolver: resolver, timeout: timeout}
}

// DialContext matches the signature grpc.WithContextDialer expects.
func (d *Dialer) DialContext(ctx context.Context, addr string) (net.Conn, error) {
	host, port, err := ParseHostPort(addr)
	if err != nil {
		return nil, err
	}

	addrs, ok := LiteralIPAddrs(host)
	if !ok {
		addrs, err = d.resolver.Resolve(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", host, err)
		}
	}

	return DialFirstSuccessful(ctx, addrs, int(port), d.timeout)
}

type dialResult struct {
	conn net.Conn
	err  error
}

// DialFirstSuccessful dials every address concurrently and returns the first
// connection that succeeds. The remaining attempts are canceled and any late
// connection is closed.
func DialFirstSuccessful(
	ctx context.Context,
	addrs []net.IPAddr,
	port int,
	timeout time.Duration,
) (net.Conn, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses provided to dial")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unbuffered, so a dial finishing after we return takes the ctx.Done branch.
	results := make(chan dialResult)

	const maxConcurrency = 10
	sem := make(chan struct{}, maxConcurrency)

	go func() {
		for _, addr := range addrs {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(ip net.IP) {
				defer func() { <-sem }()

				targetAddr := net.JoinHostPort(ip.String(), strconv.Itoa(port))
				dialer := &net.Dialer{Timeout: timeout}

				conn, err := dialer.DialContext(ctx, "tcp", targetAddr)

				select {
				case results <- dialResult{conn: conn, err: err}:
				case <-ctx.Done():
					if conn != nil {
						_ = conn.Close()
					}
				}
			}(addr.IP)
		}
	}()

	var firstError error
	failureCount := 0

	for range addrs {
		select {
		case res := <-results:
			if res.err == nil {
				return res.conn, nil
			}
			if firstError == nil {
				firstError = res.err
			}
			failureCount++
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf(
		"all connection attempts failed (total %d): %w",
		failureCount,
		firstError,
	)
}
