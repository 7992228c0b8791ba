// SPDX-License-Identifier: MIT
//
// Package build exposes the build metadata embedded with -ldflags:
//
//	go build -ldflags "-X spectrolysis/pkg/build.buildName=spectrolysis \
//	  -X spectrolysis/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds run with the defaults below; Initialize reports which
// flag is missing so release builds can refuse to start.
package build

import "fmt"

// Info is the build metadata shown by --version and logged at startup.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildInfo    = &Info{
		Name:        "spectrolysis",
		Description: "Real-time spectrogram of live or recorded audio",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize copies the ldflags values into the shared Info. It returns an
// error naming the first missing flag; Info keeps its defaults in that case.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildInfo.Name = buildName
	buildInfo.Time = buildTime
	buildInfo.Commit = buildCommit
	buildInfo.Version = buildVersion

	return nil
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() *Info {
	return buildInfo
}

// String formats the info for the startup log line.
func (i *Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}
