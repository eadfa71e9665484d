// Package version carries build metadata set through -ldflags -X.
package version

import "fmt"

var (
	// Version is the release version of the surrogate builder
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for -version output and file headers.
func String() string {
	return fmt.Sprintf("surrogate %s (%s) built %s", Version, GitSHA, BuildTime)
}
