// Package job runs a single HTTP fetch on its own goroutine and reports
// back through callbacks: per-percent progress, an optional disk-open hook
// that supplies a write sink once the response starts, and a terminal
// completion callback. Jobs carry no retry policy; a failed job is final
// and escalation is the caller's decision.
package job

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Job is one HTTP fetch. Callbacks run on the job's goroutine.
type Job struct {
	// OnFinished is invoked exactly once with the terminal error (nil on
	// success). Required before Begin.
	OnFinished func(j *Job, err error)
	// OnProgress is invoked on every whole-percent change.
	OnProgress func(j *Job, percent int)
	// OnOpenDisk, when set, is asked for a write sink after a successful
	// response begins; bytes stream into it and it is closed before
	// OnFinished fires. When unset the body is buffered in memory and
	// exposed via Payload.
	OnOpenDisk func(j *Job) (io.WriteCloser, error)

	url    string
	client *http.Client
	cancel context.CancelFunc

	mu      sync.Mutex
	percent int
	written int64
	sum     string
	payload []byte
	err     error
	done    bool
}

// New creates a Job for url using client (http.DefaultClient when nil).
func New(url string, client *http.Client) *Job {
	if client == nil {
		client = http.DefaultClient
	}
	return &Job{url: url, client: client}
}

// URL returns the fetch target.
func (j *Job) URL() string { return j.url }

// Begin starts the fetch on a new goroutine.
func (j *Job) Begin(ctx context.Context) error {
	if j.OnFinished == nil {
		return fmt.Errorf("job %s: OnFinished not set", j.url)
	}
	ctx, j.cancel = context.WithCancel(ctx)
	go j.run(ctx)
	return nil
}

// Cancel aborts an in-flight fetch; the job still terminates through
// OnFinished with the cancellation error.
func (j *Job) Cancel() {
	if j.cancel != nil {
		j.cancel()
	}
}

// Progress returns the job's own 0-100 progress.
func (j *Job) Progress() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.percent
}

// Written returns the number of payload bytes consumed so far.
func (j *Job) Written() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written
}

// SumHex returns the sha256 of the fetched bytes, available after a
// successful finish.
func (j *Job) SumHex() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sum
}

// Payload returns the buffered response body for jobs without a disk sink.
func (j *Job) Payload() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.payload
}

// Err returns the terminal error once the job finished.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) run(ctx context.Context) {
	err := j.fetch(ctx)
	j.mu.Lock()
	j.err = err
	j.done = true
	j.mu.Unlock()
	j.OnFinished(j, err)
}

func (j *Job) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return fmt.Errorf("create HTTP request: %w", err)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP GET %s: %w", j.url, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP GET %s: status %d %s", j.url, resp.StatusCode, resp.Status)
	}

	var sink io.Writer
	var disk io.WriteCloser
	var buf *bytes.Buffer
	if j.OnOpenDisk != nil {
		disk, err = j.OnOpenDisk(j)
		if err != nil {
			return fmt.Errorf("open disk for %s: %w", j.url, err)
		}
		sink = disk
	} else {
		buf = &bytes.Buffer{}
		sink = buf
	}

	h := sha256.New()
	pw := &progressWriter{job: j, total: resp.ContentLength}
	if _, err := io.Copy(io.MultiWriter(sink, h, pw), resp.Body); err != nil {
		if disk != nil {
			_ = disk.Close()
		}
		return fmt.Errorf("download %s: %w", j.url, err)
	}
	if disk != nil {
		if err := disk.Close(); err != nil {
			return fmt.Errorf("close disk for %s: %w", j.url, err)
		}
	}

	j.mu.Lock()
	j.sum = hex.EncodeToString(h.Sum(nil))
	if buf != nil {
		j.payload = buf.Bytes()
	}
	j.mu.Unlock()

	j.setProgress(100)
	return nil
}

// setProgress records pct and fires OnProgress when the whole-percent
// value changed. Progress never moves backwards.
func (j *Job) setProgress(pct int) {
	j.mu.Lock()
	if pct <= j.percent {
		j.mu.Unlock()
		return
	}
	j.percent = pct
	j.mu.Unlock()
	if j.OnProgress != nil {
		j.OnProgress(j, pct)
	}
}

// progressWriter tracks bytes written and derives whole-percent progress
// from Content-Length. Unknown lengths stay at 0 until completion.
type progressWriter struct {
	job   *Job
	total int64
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.job.mu.Lock()
	pw.job.written += int64(n)
	written := pw.job.written
	pw.job.mu.Unlock()

	if pw.total > 0 {
		pct := int(written * 100 / pw.total)
		if pct > 99 {
			// 100 is reported only after the sink is flushed and closed.
			pct = 99
		}
		pw.job.setProgress(pct)
	}
	return n, nil
}
