// Package version identifies the running build.
package version

// Name is the service name reported to tracing and logs.
const Name = "wownote"

// Version is set at build time with -ldflags "-X wownote/internal/version.Version=...".
var Version = "dev"
