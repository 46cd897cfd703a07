// SPDX-License-Identifier: MIT
//
// Package build exposes build metadata (name, timestamp, commit, version)
// embedded at link time:
//
//	go build -ldflags "-X affect/pkg/build.buildName=affect \
//	    -X affect/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds without ldflags fall back to the VCS stamps recorded by
// the Go toolchain, and finally to "dev"/"unknown".
package build

import (
	"fmt"
	"runtime/debug"
)

// Description is the one-line summary used by the CLI.
const Description = "Streaming MFCC feature pipeline with smoothed category probabilities"

type ldFlags struct {
	Name    string
	Time    string
	Commit  string
	Version string
}

// String renders the flags for `--version` output and startup logging.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:    "affect",
		Time:    "unknown",
		Commit:  "unknown",
		Version: "dev",
	}
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize copies the ldflags variables into the build flags. Missing
// commit and time are taken from the toolchain's VCS stamps when available.
// A version without a name is rejected, as it indicates a broken release
// pipeline rather than a development build.
func Initialize() error {
	if buildVersion != "" && buildName == "" {
		return fmt.Errorf("BuildName is required when BuildVersion is set")
	}

	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildVersion != "" {
		buildFlags.Version = buildVersion
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}

	info, ok := readBuildInfo()
	if !ok {
		return nil
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if buildCommit == "" && s.Value != "" {
				buildFlags.Commit = s.Value
			}
		case "vcs.time":
			if buildTime == "" && s.Value != "" {
				buildFlags.Time = s.Value
			}
		}
	}

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
