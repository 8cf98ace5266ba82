// Package buildinfo reports the version of the ttlstash binary.
//
// Version, Commit and BuildTime are injected with ldflags:
//
//	go build -ldflags "-X github.com/yndnr/ttlstash/internal/infra/buildinfo.Version=v1.0.0"
//
// Fields left unset are filled from the module build information embedded
// by the Go toolchain when it is available.
package buildinfo
