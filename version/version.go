package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var VERSION string

// Set with -ldflags "-X github.com/xvzc/xrayctl/version.Commit=..." at release time.
var (
	Commit = "unknown"
	Build  = "unknown"
)

func String() string {
	return strings.TrimSpace(VERSION)
}
