// Package version exposes build metadata injected with -ldflags -X, e.g.
//
//	go build -ldflags "-X github.com/mkorzen/poly-pnl/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

var (
	Version   = "dev"     // semantic version
	Commit    = "unknown" // short git commit hash
	BuildTime = "unknown" // UTC build timestamp, ISO 8601
)

// String renders "version (commit) built time".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}
