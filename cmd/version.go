// File: cmd/version.go
package cmd

// Version is the application version.
// This value is intended to be set at build time using ldflags.
// Example: go build -ldflags "-X github.com/kestrelqa/kestrel/cmd.Version=1.0.0"
var Version = "0.1"
