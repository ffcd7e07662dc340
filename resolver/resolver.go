// Package resolver builds ACI simple-discovery URLs from an image name,
// version tag and host platform. Pure string construction and validation;
// no I/O happens here.
package resolver

import (
	"fmt"
	"strings"

	"github.com/projecteru2/acipull/types"
)

const (
	// ProtocolPrefix is the fixed scheme prepended to every discovery URL.
	ProtocolPrefix = "https://"
	// ArtifactExt is the fixed artifact extension.
	ArtifactExt = "aci"

	maxNameLen      = 255
	maxLocalNameLen = 64
)

// Platform identifies the host for URL substitution.
type Platform struct {
	OS   string
	Arch string
}

// archTable translates platform-canonical architecture spellings to the
// artifact ecosystem's equivalents. Unmapped values pass through unchanged.
var archTable = map[string]string{
	"x86_64":  "amd64",
	"x86-64":  "amd64",
	"aarch64": "arm64",
	"i686":    "i386",
	"i586":    "i386",
}

// TranslateArch maps an architecture token through archTable.
func TranslateArch(arch string) string {
	if t, ok := archTable[arch]; ok {
		return t
	}
	return arch
}

// BuildDiscoveryURL constructs the simple-discovery candidate URL:
//
//	https://<name>-<version>-<os>-<arch>.aci
func BuildDiscoveryURL(name, version string, plat Platform) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	os := strings.ToLower(plat.OS)
	arch := TranslateArch(plat.Arch)
	return ProtocolPrefix + name + "-" + version + "-" + os + "-" + arch + "." + ArtifactExt, nil
}

// VersionFromTag extracts the version token from a tag. Tags are either a
// bare version ("v2.0.0") or a comma-separated label list
// ("version=v2.0.0,foo=bar"). An empty tag or a label list without a
// version label yields "latest".
func VersionFromTag(tag string) string {
	if tag == "" {
		return "latest"
	}
	if !strings.Contains(tag, "=") {
		return tag
	}
	for _, label := range strings.Split(tag, ",") {
		k, v, ok := strings.Cut(label, "=")
		if ok && k == "version" && v != "" {
			return v
		}
	}
	return "latest"
}

// ValidateName checks name against the artifact-naming grammar: non-empty,
// lower-case [a-z0-9._/-] starting with an alphanumeric, no empty or
// dot-only path segments.
func ValidateName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return fmt.Errorf("%w: %q", types.ErrInvalidName, name)
	}
	if !isLowerAlnum(rune(name[0])) {
		return fmt.Errorf("%w: %q", types.ErrInvalidName, name)
	}
	for _, r := range name {
		if !isLowerAlnum(r) && r != '.' && r != '_' && r != '/' && r != '-' {
			return fmt.Errorf("%w: %q", types.ErrInvalidName, name)
		}
	}
	for _, seg := range strings.Split(name, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", types.ErrInvalidName, name)
		}
	}
	return nil
}

// ValidateLocalName checks a requested persistent name against the
// runtime's resource-naming grammar: [A-Za-z0-9._-] without a leading dot
// or dash, and no path separators.
func ValidateLocalName(local string) error {
	if local == "" || len(local) > maxLocalNameLen {
		return fmt.Errorf("%w: %q", types.ErrInvalidLocalName, local)
	}
	if local[0] == '.' || local[0] == '-' {
		return fmt.Errorf("%w: %q", types.ErrInvalidLocalName, local)
	}
	for _, r := range local {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return fmt.Errorf("%w: %q", types.ErrInvalidLocalName, local)
		}
	}
	return nil
}

func isLowerAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
