// Package version holds build information injected with -ldflags, e.g.
//
//	go build -ldflags "-X chatbridge/internal/version.Version=v1.2.0 -X chatbridge/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line description of the build.
func Info() string {
	return fmt.Sprintf("chatbridge %s (commit %s, built %s)", Version, Commit, Date)
}
