// Package version provides build version information embedding.
//
// Version, git commit, and build time are set at compile time via
// -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/fleetkit/version.Version=1.0.0"
//
// When ldflags are absent, values fall back to module build info
// (vcs.revision, vcs.time).
package version
