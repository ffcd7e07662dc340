package version

import (
	"fmt"
	"runtime"
)

// Populated at build time via -ldflags.
var (
	Version   = "unknown"
	Revision  = "unknown"
	BuiltAt   = "unknown"
	GoVersion = runtime.Version()
)

// String renders the multi-line version banner.
func String() string {
	return fmt.Sprintf(
		"Version:        %s\nGit revision:   %s\nBuilt:          %s\nGo version:     %s\nOS/Arch:        %s/%s\n",
		Version, Revision, BuiltAt, GoVersion, runtime.GOOS, runtime.GOARCH,
	)
}
