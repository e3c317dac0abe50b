// Package version holds build metadata injected via ldflags.
package version

import "fmt"

// Service is the name reported by the root endpoint and the CLI.
const Service = "songrec"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata for --version output.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
