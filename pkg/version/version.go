// pkg/version/version.go
// Package version provides version metadata for the application.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// These variables are injected at build time using -ldflags.
var (
	// Version holds the current version of webprint.
	Version = "dev"
	// Commit holds the commit webprint was built from.
	Commit = "none"
	// BuildDate holds the build date of webprint.
	BuildDate = "unknown"
)

// Struct returns version information in a structured format.
type Struct struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("webprint %s (commit: %s, date: %s)", Version, Commit, BuildDate)
}

// Get returns version information as a Struct.
func Get() Struct {
	return Struct{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	}
}

// IsRelease reports whether v is a semantic version without a prerelease
// suffix. Development builds ("dev") are not releases.
func IsRelease(v string) bool {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return false
	}
	return parsed.Prerelease() == ""
}
