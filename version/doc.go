// Package version carries the build version of the relay binaries.
//
// Version and Commit are set at link time and fall back to the module build
// info:
//
//	go build -ldflags "-X github.com/kbukum/relay/version.Version=1.2.0" ./cmd/consumer
package version
