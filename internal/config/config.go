package config

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/xvzc/xrayctl/internal/control"
	"github.com/xvzc/xrayctl/internal/ptr"
)

const configFilename = "xrayctl.toml"

type Config struct {
	General *GeneralOptions `toml:"general"`
	API     *APIOptions     `toml:"api"`
	Users   []UserOptions   `toml:"users"`
}

func (c *Config) UnmarshalTOML(data any) (err error) {
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid config data")
	}

	c.General = findStructFrom[GeneralOptions](m, "general", &err)
	c.API = findStructFrom[APIOptions](m, "api", &err)
	c.Users = findStructSliceFrom[UserOptions](m, "users", &err)

	return err
}

func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	var users []UserOptions
	if c.Users != nil {
		users = make([]UserOptions, 0, len(c.Users))
		for _, u := range c.Users {
			users = append(users, u.Clone())
		}
	}

	return &Config{
		General: c.General.Clone(),
		API:     c.API.Clone(),
		Users:   users,
	}
}

// Merge overlays overrides on origin section by section. The user list is
// replaced as a whole when overrides carries one.
func (origin *Config) Merge(overrides *Config) *Config {
	if overrides == nil {
		return origin.Clone()
	}

	if origin == nil {
		return overrides.Clone()
	}

	users := origin.Users
	if overrides.Users != nil {
		users = overrides.Users
	}

	merged := &Config{
		General: origin.General.Merge(overrides.General),
		API:     origin.API.Merge(overrides.API),
	}
	merged.Users = (&Config{Users: users}).Clone().Users

	return merged
}

// Records returns the [[users]] entries as user records, in file order.
func (c *Config) Records() []control.UserRecord {
	recs := make([]control.UserRecord, 0, len(c.Users))
	for _, u := range c.Users {
		recs = append(recs, u.Record())
	}

	return recs
}

func getDefault() *Config {
	return &Config{
		General: &GeneralOptions{
			LogLevel: ptr.FromValue(zerolog.InfoLevel),
			Silent:   ptr.FromValue(false),
		},
		API: &APIOptions{
			Addr:    ptr.FromValue("127.0.0.1:8080"),
			Timeout: ptr.FromValue(time.Duration(3000) * time.Millisecond),
			DNSMode: ptr.FromValue(DNSModeSystem),
			DNSAddr: &net.UDPAddr{IP: net.IPv4(8, 8, 8, 8), Port: 53},
		},
	}
}
