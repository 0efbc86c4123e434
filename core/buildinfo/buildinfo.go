// Package buildinfo carries version data stamped at link time, e.g.
//
//	go build -ldflags "-X github.com/m3rciful/growbot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/growbot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/growbot/core/buildinfo.Date=$(date -u +%FT%TZ)"
package buildinfo

var (
	// Version is the release tag; "dev" for local builds.
	Version = "dev"
	// Commit is the short commit hash.
	Commit = "local"
	// Date is the RFC3339 build time, empty for local builds.
	Date = ""
)

// String renders the build as "v0.3.0 (abc1234, 2025-08-30T12:00:00Z)".
func String() string {
	s := Version + " (" + Commit
	if Date != "" {
		s += ", " + Date
	}
	return s + ")"
}
