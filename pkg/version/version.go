// Package version provides build information for the sallie binary.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set during build time via ldflags:
//
//	-X github.com/sallie/companion/pkg/version.Version=v1.2.3
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// Info is the build information reported by the health endpoint.
type Info struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
	}
}

// String renders the build information on one line.
func (i Info) String() string {
	return fmt.Sprintf("sallie %s (commit %s, built %s, %s)", i.Version, i.GitCommit, i.BuildTime, i.GoVersion)
}
