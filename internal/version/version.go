// Package version holds build metadata injected at link time:
//
//	go build -ldflags "-X github.com/craigjb/spiny/internal/version.Version=v0.3.0"
package version

import "fmt"

// Version is the release version.
var Version = "dev"

// Build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	return fmt.Sprintf("pacgen %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
