// Package common holds process-wide build information and logger setup
// shared by the geodata binaries.
package common

var (
	// PackageName is used as the namespace of exported metrics.
	PackageName = "geodata_registry"

	// Version is set at build time with -ldflags "-X ...common.Version=..."
	Version = "dev"
)
