package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/acipull/types"
)

func TestBuildDiscoveryURL(t *testing.T) {
	got, err := BuildDiscoveryURL("example.com/mybox", "v2.0.0", Platform{OS: "Linux", Arch: "x86_64"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/mybox-v2.0.0-linux-amd64.aci", got)

	got, err = BuildDiscoveryURL("example", "latest", Platform{OS: "linux", Arch: "riscv64"})
	require.NoError(t, err)
	assert.Equal(t, "https://example-latest-linux-riscv64.aci", got)

	_, err = BuildDiscoveryURL("/leading", "v1", Platform{OS: "linux", Arch: "amd64"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrInvalidName))
}

func TestTranslateArch(t *testing.T) {
	assert.Equal(t, "amd64", TranslateArch("x86_64"))
	assert.Equal(t, "amd64", TranslateArch("x86-64"))
	assert.Equal(t, "arm64", TranslateArch("aarch64"))
	assert.Equal(t, "i386", TranslateArch("i686"))
	assert.Equal(t, "ppc64le", TranslateArch("ppc64le"))
}

func TestVersionFromTag(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"", "latest"},
		{"v2.0.0", "v2.0.0"},
		{"version=v2.0.0", "v2.0.0"},
		{"version=v2.0.0,foo=bar", "v2.0.0"},
		{"foo=bar,version=1.2", "1.2"},
		{"foo=bar", "latest"},
		{"version=", "latest"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, VersionFromTag(tc.tag), "tag %q", tc.tag)
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"example", "example.com/mybox", "a", "foo-bar_baz.qux/v2"}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), "name %q", name)
	}

	invalid := []string{
		"",
		"Example",
		"/example",
		"example/",
		"example//mybox",
		"example/../mybox",
		"example com",
		"-example",
		".example",
	}
	for _, name := range invalid {
		err := ValidateName(name)
		require.Error(t, err, "name %q", name)
		assert.True(t, errors.Is(err, types.ErrInvalidName), "name %q", name)
	}
}

func TestValidateLocalName(t *testing.T) {
	valid := []string{"mybox", "MyBox-2", "a.b_c"}
	for _, name := range valid {
		assert.NoError(t, ValidateLocalName(name), "local %q", name)
	}

	invalid := []string{"", ".hidden", "-dash", "a/b", "a b"}
	for _, name := range invalid {
		err := ValidateLocalName(name)
		require.Error(t, err, "local %q", name)
		assert.True(t, errors.Is(err, types.ErrInvalidLocalName), "local %q", name)
	}
}
