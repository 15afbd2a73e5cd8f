// Package common holds process-level helpers shared by every binary in the
// repository: logger setup and build metadata.
package common

// PackageName identifies this module in metrics and logs.
const PackageName = "feldman-vss-backend"

// Version is set at build time via ldflags:
//
//	go build -ldflags "-X github.com/ruteri/feldman-vss-backend/common.Version=v1.2.3"
var Version = "dev"
