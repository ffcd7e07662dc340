package notify

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressFormat(t *testing.T) {
	assert.Equal(t, "X_IMPORT_PROGRESS=0", Progress(0))
	assert.Equal(t, "X_IMPORT_PROGRESS=55", Progress(55))
	assert.Equal(t, "X_IMPORT_PROGRESS=100", Progress(100))
}

func TestNewSocketUnsupervised(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	n := NewSocket()
	assert.Equal(t, Nop, n)
	assert.NoError(t, n.Notify(context.Background(), Progress(50)))
}

func TestSocketNotifierDelivers(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sockPath, Net: "unixgram"})
	require.NoError(t, err)
	defer conn.Close()

	t.Setenv("NOTIFY_SOCKET", sockPath)
	n := NewSocket()
	require.NoError(t, n.Notify(context.Background(), Progress(95)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 128)
	sz, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "X_IMPORT_PROGRESS=95", string(buf[:sz]))
}

func TestSocketNotifierDialError(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", filepath.Join(t.TempDir(), "missing.sock"))
	n := NewSocket()
	assert.Error(t, n.Notify(context.Background(), Progress(1)))
}
