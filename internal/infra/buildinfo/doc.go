// Package buildinfo exposes build-time version information.
//
// Version, Commit and BuildTime are injected with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/pagejournal/internal/infra/buildinfo.Version=v0.3.0" ./cmd/pjctl
//
// When they are not injected, Get falls back to the module build info
// embedded by the Go toolchain.
package buildinfo
