// Package version provides build version information for riskadvisor.
// These variables are set at build time via ldflags.
package version

import "fmt"

// Build information variables - set via ldflags.
// Example: go build -ldflags "-X riskadvisor/pkg/version.Version=v1.2.3".
//
//nolint:gochecknoglobals // These must be package-level vars for ldflags injection.
var (
	// Version is the semantic version (e.g., "v1.2.3" or "dev" for development builds).
	Version = "dev"

	// Commit is the git commit SHA of the build.
	Commit = "none"

	// Date is the build date in ISO format.
	Date = "unknown"
)

// ClientID returns the default client identifier sent with every backend request.
func ClientID() string {
	return fmt.Sprintf("RiskManager-Go/%s", Version)
}
