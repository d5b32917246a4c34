// Package version reports build metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	// Unknown is used when build metadata is not provided.
	Unknown = "unknown"
	// DevelopmentVersion is the default version in local builds.
	DevelopmentVersion = "dev"
)

// Overridden at build time with
// -ldflags="-X github.com/tutorhub/tutorhub/pkg/version.AppVersion=v1.2.3".
var (
	AppVersion = DevelopmentVersion
	GitCommit  = Unknown
	BuildTime  = Unknown
)

// Info is served on /version and printed by the version command.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Current returns the metadata of the running binary. Without ldflags the
// commit falls back to the VCS revision stamped by the Go toolchain.
func Current(serviceName string) Info {
	commit := normalizeOrDefault(GitCommit, Unknown)
	if commit == Unknown {
		commit = vcsRevision()
	}
	return Info{
		Service:   normalizeOrDefault(serviceName, Unknown),
		Version:   normalizeOrDefault(AppVersion, DevelopmentVersion),
		Commit:    commit,
		BuildTime: normalizeOrDefault(BuildTime, Unknown),
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s@%s (commit=%s, build_time=%s, %s)", i.Service, i.Version, i.Commit, i.BuildTime, i.GoVersion)
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Unknown
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			return setting.Value
		}
	}
	return Unknown
}

func normalizeOrDefault(v, fallback string) string {
	if norm := strings.TrimSpace(v); norm != "" {
		return norm
	}
	return fallback
}
