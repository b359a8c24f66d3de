package version

// This module contains the version information for the server that is
// generated during builds using the semver and git information available
// at compile time

var (
	// BuildTime is the time stamp of when the build was performed
	BuildTime string
	// GitHash is the commit id of the source tree used for the build
	GitHash string
)
