package resolver

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// HostPlatform detects the host OS and architecture from uname, matching
// the tokens the artifact ecosystem derives discovery URLs from.
func HostPlatform() Platform {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
	}
	return Platform{OS: cstr(u.Sysname[:]), Arch: cstr(u.Machine[:])}
}

func cstr(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
