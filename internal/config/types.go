package config

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/xvzc/xrayctl/internal/control"
	"github.com/xvzc/xrayctl/internal/ptr"
)

type merger[T any] interface {
	Clone() T
	Merge(overrides T) T
}

// ┌─────────────────┐
// │ GENERAL OPTIONS │
// └─────────────────┘
var _ merger[*GeneralOptions] = (*GeneralOptions)(nil)

var availableLogLevels = []string{"info", "warn", "trace", "error", "debug"}

type GeneralOptions struct {
	LogLevel *zerolog.Level `toml:"log-level"`
	Silent   *bool          `toml:"silent"`
}

func (o *GeneralOptions) UnmarshalTOML(data any) (err error) {
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("non-table type general config")
	}

	o.Silent = findFrom(m, "silent", parseBoolFn(), &err)
	if p := findFrom(m, "log-level", parseStringFn(checkLogLevel), &err); isOk(p, err) {
		o.LogLevel = ptr.FromValue(MustParseLogLevel(*p))
	}

	return err
}

func (o *GeneralOptions) Clone() *GeneralOptions {
	if o == nil {
		return nil
	}

	return &GeneralOptions{
		LogLevel: ptr.Clone(o.LogLevel),
		Silent:   ptr.Clone(o.Silent),
	}
}

func (origin *GeneralOptions) Merge(overrides *GeneralOptions) *GeneralOptions {
	if overrides == nil {
		return origin.Clone()
	}

	if origin == nil {
		return overrides.Clone()
	}

	return &GeneralOptions{
		LogLevel: ptr.CloneOr(overrides.LogLevel, origin.LogLevel),
		Silent:   ptr.CloneOr(overrides.Silent, origin.Silent),
	}
}

// ┌─────────────┐
// │ API OPTIONS │
// └─────────────┘
var _ merger[*APIOptions] = (*APIOptions)(nil)

type DNSModeType int

var availableDNSModes = []string{"system", "udp"}

const (
	DNSModeSystem DNSModeType = iota
	DNSModeUDP
)

func (t DNSModeType) String() string {
	return availableDNSModes[t]
}

type APIOptions struct {
	Addr    *string        `toml:"addr"`
	Timeout *time.Duration `toml:"timeout"`
	DNSMode *DNSModeType   `toml:"dns-mode"`
	DNSAddr *net.UDPAddr   `toml:"dns-addr"`
}

func (o *APIOptions) UnmarshalTOML(data any) (err error) {
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("'api' must be table type")
	}

	o.Addr = findFrom(m, "addr", parseStringFn(checkHostPort), &err)

	if p := findFrom(m, "timeout", parseIntFn[uint16](checkUint16), &err); isOk(p, err) {
		o.Timeout = ptr.FromValue(time.Duration(*p) * time.Millisecond)
	}

	if p := findFrom(m, "dns-mode", parseStringFn(checkDNSMode), &err); isOk(p, err) {
		o.DNSMode = ptr.FromValue(MustParseDNSModeType(*p))
	}

	if p := findFrom(m, "dns-addr", parseStringFn(checkIPPort), &err); isOk(p, err) {
		o.DNSAddr = MustParseUDPAddr(*p)
	}

	return err
}

func (o *APIOptions) Clone() *APIOptions {
	if o == nil {
		return nil
	}

	return &APIOptions{
		Addr:    ptr.Clone(o.Addr),
		Timeout: ptr.Clone(o.Timeout),
		DNSMode: ptr.Clone(o.DNSMode),
		DNSAddr: cloneUDPAddr(o.DNSAddr),
	}
}

func (origin *APIOptions) Merge(overrides *APIOptions) *APIOptions {
	if overrides == nil {
		return origin.Clone()
	}

	if origin == nil {
		return overrides.Clone()
	}

	dnsAddr := origin.DNSAddr
	if overrides.DNSAddr != nil {
		dnsAddr = overrides.DNSAddr
	}

	return &APIOptions{
		Addr:    ptr.CloneOr(overrides.Addr, origin.Addr),
		Timeout: ptr.CloneOr(overrides.Timeout, origin.Timeout),
		DNSMode: ptr.CloneOr(overrides.DNSMode, origin.DNSMode),
		DNSAddr: cloneUDPAddr(dnsAddr),
	}
}

func (o *APIOptions) Endpoint() (control.Endpoint, error) {
	return control.ParseEndpoint(ptr.FromPtrOr(o.Addr, ""))
}

func cloneUDPAddr(a *net.UDPAddr) *net.UDPAddr {
	if a == nil {
		return nil
	}

	return &net.UDPAddr{
		IP:   append(net.IP(nil), a.IP...),
		Port: a.Port,
		Zone: a.Zone,
	}
}

// ┌──────────────┐
// │ USER OPTIONS │
// └──────────────┘

// UserOptions is one [[users]] entry.
type UserOptions struct {
	UUID  *string `toml:"uuid"`
	Level *uint32 `toml:"level"`
	InTag *string `toml:"inbound"`
	Email *string `toml:"email"`
	Flow  *string `toml:"flow"`
}

func (o *UserOptions) UnmarshalTOML(data any) (err error) {
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("non-table type user entry")
	}

	o.UUID = findFrom(m, "uuid", parseStringFn(checkUUID), &err)
	o.Level = findFrom(m, "level", parseIntFn[uint32](checkUint32), &err)
	o.InTag = findFrom(m, "inbound", parseStringFn(checkNonEmpty), &err)
	o.Email = findFrom(m, "email", parseStringFn(checkEmail), &err)
	o.Flow = findFrom(m, "flow", parseStringFn(nil), &err)

	return err
}

func (o UserOptions) Clone() UserOptions {
	return UserOptions{
		UUID:  ptr.Clone(o.UUID),
		Level: ptr.Clone(o.Level),
		InTag: ptr.Clone(o.InTag),
		Email: ptr.Clone(o.Email),
		Flow:  ptr.Clone(o.Flow),
	}
}

func (o UserOptions) Record() control.UserRecord {
	return control.UserRecord{
		UUID:  ptr.FromPtrOr(o.UUID, ""),
		Level: ptr.FromPtrOr(o.Level, 0),
		InTag: ptr.FromPtrOr(o.InTag, ""),
		Email: ptr.FromPtrOr(o.Email, ""),
		Flow:  ptr.FromPtrOr(o.Flow, ""),
	}
}
