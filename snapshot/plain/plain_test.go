package plain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndRemove(t *testing.T) {
	s := New()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap")

	require.NoError(t, s.Create(ctx, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Creating over an existing snapshot fails.
	require.Error(t, s.Create(ctx, path))

	require.NoError(t, s.Remove(ctx, path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Removing a missing snapshot is not an error.
	require.NoError(t, s.Remove(ctx, path))
}

func TestCloneCopiesTree(t *testing.T) {
	s := New()
	ctx := context.Background()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")

	require.NoError(t, os.MkdirAll(filepath.Join(src, "rootfs/etc"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "manifest"), []byte(`{"name":"x"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "rootfs/etc/hostname"), []byte("box"), 0o600))
	require.NoError(t, os.Symlink("etc/hostname", filepath.Join(src, "rootfs/link")))

	require.NoError(t, s.Clone(ctx, src, dst))

	got, err := os.ReadFile(filepath.Join(dst, "rootfs/etc/hostname"))
	require.NoError(t, err)
	assert.Equal(t, "box", string(got))

	info, err := os.Stat(filepath.Join(dst, "rootfs/etc/hostname"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dst, "rootfs/link"))
	require.NoError(t, err)
	assert.Equal(t, "etc/hostname", link)
}

func TestCloneCleansUpOnCancel(t *testing.T) {
	s := New()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	require.NoError(t, os.MkdirAll(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "f"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Clone(ctx, src, dst))
	_, err := os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}
