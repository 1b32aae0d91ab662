// Package common holds process-wide helpers shared by the dashboard binaries.
package common

// PackageName is used as the Prometheus namespace and as the default log service tag.
const PackageName = "wo_dashboard"

// Version is overridden at build time with -ldflags "-X .../common.Version=...".
var Version = "dev"
