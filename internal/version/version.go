// Package version holds the build version of the adapter.
package version

var (
	// Version is the current version of dapbridge
	Version = "0.1.0"
)
