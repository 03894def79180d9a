// Package common holds process-wide values shared by the binaries: the build
// version, the metrics namespace and the slog logger setup.
package common

// Version is overridden at build time with -ldflags "-X .../common.Version=...".
var Version = "dev"

// PackageName is used as the Prometheus namespace.
const PackageName = "docregistry"
