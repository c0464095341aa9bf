package netutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParseHostPort splits "host:port" into a non-empty host and a port in 1-65535.
// IPv6 hosts must be bracketed ("[::1]:8080") and are returned without brackets.
func ParseHostPort(s string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}

	if host == "" {
		return "", 0, fmt.Errorf("missing host in %q", s)
	}

	if strings.ContainsAny(host, " \t/") {
		return "", 0, fmt.Errorf("invalid host %q", host)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return "", 0, fmt.Errorf("invalid port %q: must be 1-65535", portStr)
	}

	return host, uint16(port), nil
}

// JoinHostPort is the inverse of ParseHostPort.
func JoinHostPort(host string, port uint16) string {
	return net.JoinHostPort(host, strconv.Itoa(int(port)))
}

// LiteralIPAddrs returns host as a single address when it is an IP literal.
func LiteralIPAddrs(host string) ([]net.IPAddr, bool) {
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, false
	}

	return []net.IPAddr{{IP: ip}}, true
}
