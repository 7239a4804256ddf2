// Package warno holds build information for the WARNO telemetry tools.
package warno

var (
	// Version of the application, set during the build.
	Version = "v0.1.0"
	// Build timestamp, set during the build.
	Build = "n/a"
)
