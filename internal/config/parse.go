package config

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func parseBoolFn() func(any) (bool, error) {
	return func(v any) (bool, error) {
		b, ok := v.(bool)
		if !ok {
			return false, fmt.Errorf("expected bool, got %T", v)
		}

		return b, nil
	}
}

func parseStringFn(check func(string) error) func(any) (string, error) {
	return func(v any) (string, error) {
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("expected string, got %T", v)
		}

		if check != nil {
			if err := check(s); err != nil {
				return "", err
			}
		}

		return s, nil
	}
}

// parseIntFn accepts the int64 values the toml decoder produces and narrows
// them to T after check has bounded the range.
func parseIntFn[T integer](check func(int) error) func(any) (T, error) {
	return func(v any) (T, error) {
		var i int
		switch n := v.(type) {
		case int64:
			i = int(n)
		case int:
			i = n
		default:
			return 0, fmt.Errorf("expected integer, got %T", v)
		}

		if check != nil {
			if err := check(i); err != nil {
				return 0, err
			}
		}

		return T(i), nil
	}
}

func isOk[T any](p *T, err error) bool {
	return p != nil && err == nil
}

func MustParseLogLevel(s string) zerolog.Level {
	l, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || !slices.Contains(availableLogLevels, strings.ToLower(s)) {
		panic(fmt.Sprintf("invalid log level %q", s))
	}

	return l
}

func MustParseDNSModeType(s string) DNSModeType {
	i := slices.Index(availableDNSModes, strings.ToLower(s))
	if i < 0 {
		panic(fmt.Sprintf("invalid dns mode %q", s))
	}

	return DNSModeType(i)
}

func MustParseUDPAddr(s string) *net.UDPAddr {
	addr, err := net.ResolveUDPAddr("udp", s)
	if err != nil {
		panic(err)
	}

	return addr
}
