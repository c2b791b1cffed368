// Package version exposes build metadata stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/zsiec/simviz/pkg/version.Version=v0.3.0"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info contains version information.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns the version information.
func GetInfo() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("simviz %s (commit: %s, built: %s, %s, %s)",
		i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.Platform)
}

// Short returns "simviz <version>".
func (i Info) Short() string {
	return "simviz " + i.Version
}
