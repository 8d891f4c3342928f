// Package version holds build metadata of the querycheck binary.
package version

import (
	"runtime/debug"
)

const unknown = "unknown"

// Build metadata, overridden at link time:
//
//	-ldflags "-X github.com/Sumatoshi-tech/querycheck/pkg/version.Version=v1.2.0"
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills metadata left at its defaults from the module
// build info embedded by the Go toolchain.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown && setting.Value != "" {
				Commit = shortHash(setting.Value)
			}
		case "vcs.time":
			if Date == unknown && setting.Value != "" {
				Date = setting.Value
			}
		}
	}
}

func shortHash(hash string) string {
	const shortLen = 12

	if len(hash) > shortLen {
		return hash[:shortLen]
	}

	return hash
}

// String renders the metadata the way the version command prints it.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
