package app

import "runtime"

// Build-time variables set via -ldflags. For example:
//
//	go build -ldflags "-X github.com/large-farva/passrelay/internal/app.Version=v1.0.0"
var (
	Version = "dev"
	BuiltAt = "unknown"
)

// GoVersion is the toolchain the running binary was built with.
var GoVersion = runtime.Version()
