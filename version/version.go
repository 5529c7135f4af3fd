// Package version reports what build of scorecast is running. The variables
// are stamped at build time:
//
//	go build -ldflags "-X github.com/courtside/scorecast/version.version=1.0.0"
//
// Unstamped binaries fall back to module and VCS metadata embedded by the
// Go toolchain.
package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const devVersion = "dev"

// shortCommitLen truncates VCS revisions to the familiar short form.
const shortCommitLen = 7

var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the release version, preferring the ldflags stamp,
// then the module version, then "dev".
func GetVersion() string {
	if version != devVersion {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return devVersion
}

// vcsSetting reads one key from the toolchain's embedded VCS settings.
func vcsSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

func getCommitFromBuildInfo() string {
	rev := vcsSetting("vcs.revision")
	if rev == "" {
		return ""
	}
	return rev[:min(shortCommitLen, len(rev))]
}

func isDirtyFromBuildInfo() bool {
	return vcsSetting("vcs.modified") == "true"
}

// commit returns the stamped commit, falling back to the VCS revision.
func commit() string {
	if gitCommit != "" {
		return gitCommit
	}
	return getCommitFromBuildInfo()
}

// GetVersionInfo renders the version, commit, and build date as the
// multi-line block printed by the --version flag.
func GetVersionInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scorecast version %s", GetVersion())
	if c := commit(); c != "" {
		fmt.Fprintf(&b, "\ncommit: %s", c)
	}
	if buildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", buildDate)
	}
	return b.String()
}

// GetBuildInfo returns the same details as slog key-value pairs for the
// startup log line.
func GetBuildInfo() []any {
	attrs := []any{"version", GetVersion()}
	if c := commit(); c != "" {
		attrs = append(attrs, "commit", c)
	}
	if gitCommit == "" && isDirtyFromBuildInfo() {
		attrs = append(attrs, "dirty", true)
	}
	if buildDate != "" {
		attrs = append(attrs, "built", buildDate)
	}
	return attrs
}
