// Package version holds build-time version information for the forumrag binary.
// The variables are populated via -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/forumrag-go/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/forumrag-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/forumrag-go/internal/version.BuildDate=2026-01-01"
//
// Without ldflags the values fall back to "dev" and "unknown".
package version

var (
	// Version is the semantic version of the binary (e.g. "v0.3.0").
	Version = "dev"
	// Commit is the short git SHA the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build date.
	BuildDate = "unknown"
)

// String renders the version line printed by `forumrag version`.
func String() string {
	return "forumrag " + Version + " (commit: " + Commit + ", built: " + BuildDate + ")"
}
