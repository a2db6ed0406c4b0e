package app

import "runtime"

// Build-time variables set via -ldflags. For example:
//
//	go build -ldflags "-X github.com/large-farva/aptdec/internal/app.Version=v1.0.0"
var (
	Version = "dev"
	Commit  = "unknown"
	BuiltAt = "unknown"
)

// VersionInfo returns the build information reported by `aptdec version`
// and GET /api/version.
func VersionInfo() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     Commit,
		"built_at":   BuiltAt,
		"go_version": runtime.Version(),
	}
}
