// Package version provides build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/quantpulse-monitor/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/quantpulse-monitor/internal/version.Commit=$(git rev-parse --short HEAD)" \
//	         ./cmd/monitor
package version

import "fmt"

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// UserAgent identifies the monitor to the market-data backend.
func UserAgent() string {
	return "quantpulse-monitor/" + Version
}

// String returns a formatted version string.
func String() string {
	return fmt.Sprintf("%s (%s) built %s", Version, Commit, BuildTime)
}
