// Package version holds build metadata for the routecheck binary.
package version

import "fmt"

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/newtron-network/routecheck/pkg/version.Version=v0.3.0 \
//	  -X github.com/newtron-network/routecheck/pkg/version.GitCommit=abc1234 \
//	  -X github.com/newtron-network/routecheck/pkg/version.BuildDate=2026-01-01T00:00:00Z"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// IsRelease reports whether the binary was built with version ldflags.
func IsRelease() bool {
	return Version != "dev"
}

// Info returns a formatted version string for display.
func Info() string {
	return fmt.Sprintf("%s (%s) built %s", Version, GitCommit, BuildDate)
}
