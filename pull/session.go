// Package pull implements the image-pull control plane: one Session per
// pull, sequencing simple discovery, meta discovery fallback and the final
// download, streaming the archive into a staging snapshot through an
// extraction subprocess, and optionally materializing the result under a
// persistent local name.
package pull

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/acipull/config"
	"github.com/projecteru2/acipull/extract"
	"github.com/projecteru2/acipull/images"
	"github.com/projecteru2/acipull/job"
	"github.com/projecteru2/acipull/notify"
	"github.com/projecteru2/acipull/progress"
	"github.com/projecteru2/acipull/resolver"
	"github.com/projecteru2/acipull/snapshot"
	"github.com/projecteru2/acipull/storage"
	"github.com/projecteru2/acipull/types"
)

// IDResolver derives the content identifier a pull stages under. The
// identifier is resolved before any path is computed since staging paths
// derive from it.
type IDResolver func(name, tag string) (string, error)

// DefaultIDResolver hashes the image reference so staging bases are
// deterministic per (name, tag). The digest of the actual fetched bytes is
// computed stream-side and recorded at finalize time.
func DefaultIDResolver(name, tag string) (string, error) {
	sum := sha256.Sum256([]byte(name + ":" + tag))
	return hex.EncodeToString(sum[:])[:32], nil
}

// Finished is the session's single completion callback: code is zero on
// success and a negative failure-domain code otherwise. It is invoked
// exactly once per started pull, on its own goroutine.
type Finished func(code types.Code, err error)

// Options are the session's injected collaborators. Snapshotter is
// required; everything else has a default.
type Options struct {
	Snapshotter snapshot.Snapshotter
	// Store, when set, records finalized local copies in the image index.
	Store storage.Store[images.Index]
	// Notifier publishes X_IMPORT_PROGRESS updates. Defaults to notify.Nop.
	Notifier notify.Notifier
	// Tracker receives progress.Event updates. Defaults to progress.Nop.
	Tracker progress.Tracker
	// Client is the HTTP client for all network jobs. Defaults to a client
	// bounded by the configured pull timeout.
	Client *http.Client
	// ResolveID defaults to DefaultIDResolver.
	ResolveID IDResolver
	// Bands defaults to progress.DefaultBands().
	Bands *progress.Bands
	// Finished is the completion callback; optional when the caller only
	// uses Wait.
	Finished Finished
}

// Session is one pull in flight. A session is single-use: Start may be
// called once, and Close tears everything down regardless of state.
type Session struct {
	conf      *config.Config
	snaps     snapshot.Snapshotter
	store     storage.Store[images.Index]
	notifier  notify.Notifier
	tracker   progress.Tracker
	client    *http.Client
	resolveID IDResolver
	bands     progress.Bands
	finished  Finished

	runCtx context.Context
	cancel context.CancelFunc

	events    chan event
	quit      chan struct{} // closed when the event loop exits
	done      chan struct{} // closed when the result is determined
	closeOnce sync.Once

	// mu guards all pull state below. The event loop is the main mutator;
	// openDisk runs on a job goroutine and Start on the caller's.
	mu      sync.Mutex
	phase   progress.Phase
	started bool
	ended   bool
	result  error

	simpleJob   *job.Job
	metaJob     *job.Job
	downloadJob *job.Job

	name    string
	tag     string
	version string
	id      string
	local   string
	force   bool
	plat    resolver.Platform

	stagingPath string
	finalPath   string
	contentSum  string
	contentSize int64

	tar       *extract.Extractor
	procErr   error // early subprocess failure, reported at copy time
	streamErr error // download failure held until the extractor exits
}

// New creates a Session bound to conf's image root. The session's event
// loop runs until Close.
func New(ctx context.Context, conf *config.Config, opts Options) (*Session, error) {
	if opts.Snapshotter == nil {
		return nil, fmt.Errorf("snapshotter is required")
	}
	if err := conf.EnsureImageRoot(); err != nil {
		return nil, fmt.Errorf("ensure image root: %w", err)
	}

	s := &Session{
		conf:      conf,
		snaps:     opts.Snapshotter,
		store:     opts.Store,
		notifier:  opts.Notifier,
		tracker:   opts.Tracker,
		client:    opts.Client,
		resolveID: opts.ResolveID,
		finished:  opts.Finished,
		bands:     progress.DefaultBands(),
		events:    make(chan event, 32),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		phase:     progress.PhaseIdle,
	}
	if s.notifier == nil {
		s.notifier = notify.Nop
	}
	if s.tracker == nil {
		s.tracker = progress.Nop
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: time.Duration(conf.PullTimeoutSeconds) * time.Second}
	}
	if s.resolveID == nil {
		s.resolveID = DefaultIDResolver
	}
	if opts.Bands != nil {
		s.bands = *opts.Bands
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	go s.run()
	return s, nil
}

// Start begins a pull. Validation failures and a second Start are rejected
// synchronously before any I/O; everything later is delivered through the
// completion callback and Wait.
func (s *Session) Start(name, tag, local string, force bool) error {
	if err := resolver.ValidateName(name); err != nil {
		return err
	}
	if local != "" {
		if err := resolver.ValidateLocalName(local); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("%w: session already started", types.ErrBusy)
	}

	id, err := s.resolveID(name, tag)
	if err != nil {
		return fmt.Errorf("resolve content id: %w", err)
	}

	s.name = name
	s.tag = tag
	s.version = resolver.VersionFromTag(tag)
	s.id = id
	s.local = local
	s.force = force
	s.plat = resolver.HostPlatform()

	url, err := resolver.BuildDiscoveryURL(name, s.version, s.plat)
	if err != nil {
		return err
	}

	j := job.New(url, s.client)
	j.OnFinished = s.onJobFinished
	j.OnProgress = s.onJobProgress
	j.OnOpenDisk = s.openDisk

	s.simpleJob = j
	s.started = true
	s.phase = progress.PhaseSimpleDiscovery

	log.WithFunc("pull.Start").Infof(s.runCtx, "pulling %s tag %s via %s", name, tag, url)
	if err := j.Begin(s.runCtx); err != nil {
		return fmt.Errorf("%w: begin simple discovery: %w", types.ErrDiscoveryFailed, err)
	}
	return nil
}

// Wait blocks until the pull's result is determined or ctx expires.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.result
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the pull's result is determined.
func (s *Session) Done() <-chan struct{} { return s.done }

// Phase returns the session's current lifecycle phase.
func (s *Session) Phase() progress.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Close tears the session down from any state: in-flight jobs are
// cancelled, a live extraction subprocess is killed and reaped, and the
// staging snapshot is removed. If the pull had started but no result was
// determined yet, the completion callback fires with ErrCancelled.
// Close is idempotent.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		ev := event{kind: evTeardown, ack: make(chan struct{})}
		select {
		case s.events <- ev:
		case <-s.quit:
			return
		}
		select {
		case <-ev.ack:
		case <-s.quit:
		case <-ctx.Done():
		}
	})
	return nil
}

// post delivers an event to the loop, dropping it once the loop has exited.
func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.quit:
	}
}

func (s *Session) onJobFinished(j *job.Job, err error) {
	s.post(event{kind: evJobDone, job: j, err: err})
}

func (s *Session) onJobProgress(j *job.Job, percent int) {
	s.post(event{kind: evJobProgress, job: j, percent: percent})
}

// finish determines the session result exactly once. Callers hold s.mu.
func (s *Session) finish(err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.result = err
	if err != nil {
		s.phase = progress.PhaseFailed
	} else {
		s.phase = progress.PhaseDone
	}
	close(s.done)
	if s.finished != nil {
		cb := s.finished
		go cb(types.CodeOf(err), err)
	}
}
