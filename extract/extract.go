// Package extract owns the unpack subprocess of a pull: one tar child per
// staging snapshot, fed through a pipe, with its exit reaped on a
// dedicated goroutine and published through a channel so the orchestrator
// never blocks waiting for it.
package extract

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Extractor is one live extraction subprocess unpacking a byte stream
// into a staging directory.
type Extractor struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	done   chan struct{}
	result error

	outMu  sync.Mutex
	output strings.Builder
}

// Start spawns a tar child unpacking stdin into dir. The returned
// Extractor owns the process handle; the caller streams bytes into Stdin
// and observes termination via Done/Result.
func Start(ctx context.Context, dir string) (*Extractor, error) {
	e := &Extractor{done: make(chan struct{})}

	cmd := exec.CommandContext(ctx, "tar", "-x", "-C", dir) //nolint:gosec // dir is a managed staging path
	cmd.Stdout = lockedWriter{e}
	cmd.Stderr = lockedWriter{e}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("tar stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start tar: %w", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	go e.reap()
	return e, nil
}

// reap waits for the child, records the result, and closes Done.
func (e *Extractor) reap() {
	err := e.cmd.Wait()
	if err != nil {
		e.outMu.Lock()
		msg := strings.TrimSpace(e.output.String())
		e.outMu.Unlock()
		if msg != "" {
			err = fmt.Errorf("tar: %w (output: %s)", err, msg)
		} else {
			err = fmt.Errorf("tar: %w", err)
		}
	}
	e.result = err
	close(e.done)
}

// Stdin is the write end of the pipe feeding the subprocess. The caller
// must close it to signal end of stream.
func (e *Extractor) Stdin() io.WriteCloser { return e.stdin }

// Done is closed once the subprocess has been reaped.
func (e *Extractor) Done() <-chan struct{} { return e.done }

// Result returns the exit status; valid only after Done is closed.
func (e *Extractor) Result() error { return e.result }

// PID returns the child's process id.
func (e *Extractor) PID() int {
	if e.cmd.Process == nil {
		return 0
	}
	return e.cmd.Process.Pid
}

// Kill force-terminates the child and synchronously reaps it, bounded by
// process exit. Safe to call after the child already exited.
func (e *Extractor) Kill() error {
	_ = e.stdin.Close()
	select {
	case <-e.done:
	default:
		_ = e.cmd.Process.Kill()
		<-e.done
	}
	return e.result
}

// lockedWriter serializes subprocess output capture against reap's read.
type lockedWriter struct{ e *Extractor }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.e.outMu.Lock()
	defer w.e.outMu.Unlock()
	return w.e.output.Write(p)
}
