package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GoVersion returns the Go runtime version string.
func GoVersion() string { return runtime.Version() }

// UserAgent identifies this service in outbound provider requests.
func UserAgent() string {
	return fmt.Sprintf("a2a-translation/%s (%s)", Version, runtime.Version())
}
