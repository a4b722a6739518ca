// Package version holds build-time version information for the docai binary.
// The variables are populated at build time via -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/docai-go/internal/version.Version=v0.3.0 \
//	                    -X github.com/54b3r/docai-go/internal/version.Commit=abc1234"
//
// Without ldflags the values fall back to "dev" / "unknown".
package version

import "fmt"

// Version is the semantic version of the binary. Defaults to "dev".
var Version = "dev"

// Commit is the short git SHA the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC build date (RFC3339).
var BuildDate = "unknown"

// String renders the version triple on one line, as printed by `docai version`
// and reported by the health endpoint.
func String() string {
	return fmt.Sprintf("docai %s (commit %s, built %s)", Version, Commit, BuildDate)
}
