package buildconfig

import (
	"fmt"
	"runtime"
)

// Build-time variables injected via ldflags:
//
//	-X github.com/Harshitk-cp/wellspring/internal/buildconfig.version=v1.2.0
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func Version() string {
	return version
}

// Commit returns the git commit hash
func Commit() string {
	return commit
}

// String renders a one-line version banner for CLIs.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", version, commit, buildDate, runtime.Version())
}

// VersionInfo returns full version information
func VersionInfo() map[string]string {
	return map[string]string{
		"version":    version,
		"commit":     commit,
		"build_date": buildDate,
		"go":         runtime.Version(),
	}
}
