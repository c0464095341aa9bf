package config

import (
	"fmt"
	"math"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/xvzc/xrayctl/internal/control"
	"github.com/xvzc/xrayctl/internal/netutil"
)

func checkLogLevel(v string) error {
	if !slices.Contains(availableLogLevels, strings.ToLower(v)) {
		return fmt.Errorf("invalid log level %q, one of %v", v, availableLogLevels)
	}

	return nil
}

func checkDNSMode(v string) error {
	if !slices.Contains(availableDNSModes, strings.ToLower(v)) {
		return fmt.Errorf("invalid dns mode %q, one of %v", v, availableDNSModes)
	}

	return nil
}

// checkHostPort accepts a host name or an ip literal with a non-zero port.
func checkHostPort(v string) error {
	_, _, err := netutil.ParseHostPort(v)
	return err
}

// checkIPPort only accepts an ip literal, the dns server cannot be resolved by name.
func checkIPPort(v string) error {
	host, portStr, err := net.SplitHostPort(v)
	if err != nil {
		return fmt.Errorf("wrong format: %w", err)
	}

	if net.ParseIP(host) == nil {
		return fmt.Errorf("%q is not an ip address", host)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || math.MaxUint16 < port {
		return fmt.Errorf("invalid port %q", portStr)
	}

	return nil
}

func checkUint16(v int) error {
	if v < 0 || math.MaxUint16 < v {
		return fmt.Errorf("out of range[%d-%d]", 0, math.MaxUint16)
	}

	return nil
}

func checkUint32(v int) error {
	if v < 0 || math.MaxUint32 < v {
		return fmt.Errorf("out of range[%d-%d]", 0, uint32(math.MaxUint32))
	}

	return nil
}

func checkWorkers(v int) error {
	if v < 1 || 256 < v {
		return fmt.Errorf("out of range[%d-%d]", 1, 256)
	}

	return nil
}

func checkUUID(v string) error {
	return control.CheckID(v)
}

func checkNonEmpty(v string) error {
	if v == "" {
		return fmt.Errorf("must not be empty")
	}

	return nil
}

func checkEmail(v string) error {
	if v == "" {
		return fmt.Errorf("must not be empty")
	}

	if strings.ContainsAny(v, " \t\r\n") {
		return fmt.Errorf("email %q contains whitespace", v)
	}

	return nil
}
