package job

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFinished(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("job did not finish in time")
		return nil
	}
}

func TestFetchBuffersPayload(t *testing.T) {
	body := []byte(`{"archiveURL":"https://example.com/box.aci"}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	j := New(srv.URL, srv.Client())
	finished := make(chan error, 1)
	j.OnFinished = func(_ *Job, err error) { finished <- err }
	require.NoError(t, j.Begin(context.Background()))

	require.NoError(t, waitFinished(t, finished))
	assert.Equal(t, body, j.Payload())
	assert.Equal(t, int64(len(body)), j.Written())

	sum := sha256.Sum256(body)
	assert.Equal(t, hex.EncodeToString(sum[:]), j.SumHex())
	assert.Equal(t, 100, j.Progress())
}

func TestFetchStreamsIntoDisk(t *testing.T) {
	payload := make([]byte, 1<<20)
	for i := range payload {
		payload[i] = byte(i)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var got []byte
	closed := false
	sink := writeCloserFunc{
		write: func(p []byte) (int, error) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, p...)
			return len(p), nil
		},
		close: func() error {
			mu.Lock()
			defer mu.Unlock()
			closed = true
			return nil
		},
	}

	j := New(srv.URL, srv.Client())
	finished := make(chan error, 1)
	j.OnFinished = func(_ *Job, err error) { finished <- err }
	j.OnOpenDisk = func(_ *Job) (io.WriteCloser, error) { return sink, nil }
	require.NoError(t, j.Begin(context.Background()))

	require.NoError(t, waitFinished(t, finished))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, payload, got)
	assert.True(t, closed)
	assert.Nil(t, j.Payload())
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	j := New(srv.URL, srv.Client())
	finished := make(chan error, 1)
	j.OnFinished = func(_ *Job, err error) { finished <- err }
	opened := false
	j.OnOpenDisk = func(_ *Job) (io.WriteCloser, error) {
		opened = true
		return nil, nil
	}
	require.NoError(t, j.Begin(context.Background()))

	err := waitFinished(t, finished)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.False(t, opened, "disk must not be opened on a failed response")
}

func TestProgressIsMonotone(t *testing.T) {
	payload := make([]byte, 256<<10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "262144")
		for off := 0; off < len(payload); off += 32 << 10 {
			_, _ = w.Write(payload[off : off+(32<<10)])
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	var mu sync.Mutex
	var seen []int
	j := New(srv.URL, srv.Client())
	finished := make(chan error, 1)
	j.OnFinished = func(_ *Job, err error) { finished <- err }
	j.OnProgress = func(_ *Job, pct int) {
		mu.Lock()
		seen = append(seen, pct)
		mu.Unlock()
	}
	require.NoError(t, j.Begin(context.Background()))
	require.NoError(t, waitFinished(t, finished))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
	assert.Equal(t, 100, seen[len(seen)-1])
}

func TestCancelAbortsFetch(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 4096))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	j := New(srv.URL, srv.Client())
	finished := make(chan error, 1)
	j.OnFinished = func(_ *Job, err error) { finished <- err }
	require.NoError(t, j.Begin(context.Background()))

	time.Sleep(100 * time.Millisecond)
	j.Cancel()
	require.Error(t, waitFinished(t, finished))
}

func TestBeginRequiresFinishedCallback(t *testing.T) {
	j := New("https://example.invalid", nil)
	require.Error(t, j.Begin(context.Background()))
}

type writeCloserFunc struct {
	write func([]byte) (int, error)
	close func() error
}

func (w writeCloserFunc) Write(p []byte) (int, error) { return w.write(p) }
func (w writeCloserFunc) Close() error                { return w.close() }
