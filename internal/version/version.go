// Package version holds build information, overridden at build time with
// -ldflags "-X github.com/Norgate-AV/decompcache/internal/version.Version=1.0.0"
package version

import "fmt"

var (
	// Version is the semantic version of decompcache
	Version = "dev"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildTime is the build timestamp (set at build time)
	BuildTime = "unknown"
)

// String returns "<version> (<short commit>) <build time>"
func String() string {
	commit := Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", Version, commit, BuildTime)
}
