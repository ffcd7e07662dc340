package extract

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecteru2/acipull/utils"
)

func requireTar(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not available")
	}
}

// tarball builds an uncompressed tar stream with the given files.
func tarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func waitDone(t *testing.T, e *Extractor) error {
	t.Helper()
	select {
	case <-e.Done():
		return e.Result()
	case <-time.After(10 * time.Second):
		t.Fatal("extractor did not exit in time")
		return nil
	}
}

func TestExtractUnpacksStream(t *testing.T) {
	requireTar(t)
	dir := t.TempDir()

	e, err := Start(context.Background(), dir)
	require.NoError(t, err)

	stream := tarball(t, map[string]string{
		"manifest":      `{"name":"example"}`,
		"rootfs/hello":  "hello world",
		"rootfs/second": "more",
	})
	_, err = io.Copy(e.Stdin(), bytes.NewReader(stream))
	require.NoError(t, err)
	require.NoError(t, e.Stdin().Close())

	require.NoError(t, waitDone(t, e))

	got, err := os.ReadFile(filepath.Join(dir, "rootfs/hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
	assert.True(t, utils.ValidFile(filepath.Join(dir, "manifest")))
}

func TestExtractReportsGarbageInput(t *testing.T) {
	requireTar(t)
	dir := t.TempDir()

	e, err := Start(context.Background(), dir)
	require.NoError(t, err)

	_, _ = e.Stdin().Write([]byte("this is not a tar stream at all, not even close............"))
	require.NoError(t, e.Stdin().Close())

	require.Error(t, waitDone(t, e))
}

func TestKillTerminatesAndReaps(t *testing.T) {
	requireTar(t)
	dir := t.TempDir()

	e, err := Start(context.Background(), dir)
	require.NoError(t, err)
	require.NotZero(t, e.PID())

	err = e.Kill()
	require.Error(t, err)

	// Reaped: the pid no longer refers to a live child.
	assert.False(t, utils.IsProcessAlive(e.PID()))

	// Kill after exit is a no-op returning the recorded result.
	assert.Equal(t, err, e.Kill())
}
