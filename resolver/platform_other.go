//go:build !linux

package resolver

import "runtime"

// HostPlatform falls back to the Go runtime identifiers on platforms
// without uname. GOARCH already uses the ecosystem spellings, so the
// translation table passes them through.
func HostPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}
