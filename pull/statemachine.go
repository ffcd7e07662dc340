package pull

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/acipull/extract"
	"github.com/projecteru2/acipull/job"
	"github.com/projecteru2/acipull/notify"
	"github.com/projecteru2/acipull/progress"
	"github.com/projecteru2/acipull/resolver"
	"github.com/projecteru2/acipull/types"
	"github.com/projecteru2/acipull/utils"
)

type eventKind int

const (
	evJobDone eventKind = iota
	evJobProgress
	evProcExit
	evTeardown
)

type event struct {
	kind    eventKind
	job     *job.Job
	percent int
	proc    *extract.Extractor
	err     error
	ack     chan struct{}
}

// run is the session's single event loop. All transitions happen here, so
// job goroutines and the extractor reaper never manipulate pull state
// directly.
func (s *Session) run() {
	defer close(s.quit)
	for ev := range s.events {
		switch ev.kind {
		case evTeardown:
			s.teardown()
			close(ev.ack)
			return
		case evJobDone:
			s.handleJobDone(ev.job, ev.err)
		case evJobProgress:
			s.handleJobProgress(ev.job, ev.percent)
		case evProcExit:
			s.handleProcExit(ev.proc, ev.err)
		}
	}
}

// openDisk is invoked by streaming jobs right before the first payload
// byte. It creates the staging snapshot and spawns the extraction
// subprocess whose stdin becomes the job's sink.
func (s *Session) openDisk(j *job.Job) (io.WriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil, fmt.Errorf("%w: session closed", types.ErrCancelled)
	}
	if j != s.simpleJob && j != s.downloadJob {
		return nil, fmt.Errorf("stale job tried to open disk")
	}
	if s.tar != nil {
		return nil, fmt.Errorf("extraction already in flight")
	}

	if s.finalPath == "" {
		s.finalPath = s.conf.PullPath(s.id)
	}
	s.stagingPath = utils.TempName(s.finalPath)

	if err := s.snaps.Create(s.runCtx, s.stagingPath); err != nil {
		s.stagingPath = ""
		return nil, fmt.Errorf("%w: %w", types.ErrSnapshotCreate, err)
	}

	t, err := extract.Start(s.runCtx, s.stagingPath)
	if err != nil {
		if rmErr := s.snaps.Remove(s.runCtx, s.stagingPath); rmErr != nil {
			log.WithFunc("pull.openDisk").Warnf(s.runCtx, "remove staging %s: %v", s.stagingPath, rmErr)
		}
		s.stagingPath = ""
		return nil, fmt.Errorf("%w: %w", types.ErrSubprocessFailed, err)
	}
	s.tar = t
	s.procErr = nil
	go func() {
		<-t.Done()
		s.post(event{kind: evProcExit, proc: t, err: t.Result()})
	}()
	return t.Stdin(), nil
}

func (s *Session) handleJobDone(j *job.Job, jobErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	logger := log.WithFunc("pull.handleJobDone")

	switch j {
	case s.simpleJob:
		if jobErr != nil {
			logger.Warnf(s.runCtx, "simple discovery failed, falling back to meta discovery: %v", jobErr)
			s.discardStaging()
			if err := s.startMetaDiscovery(); err != nil {
				s.finish(fmt.Errorf("%w: %w", types.ErrDiscoveryFailed, err))
			}
			return
		}
		s.enterCopy(j)

	case s.metaJob:
		if jobErr != nil {
			s.finish(fmt.Errorf("%w: %w", types.ErrDiscoveryFailed, jobErr))
			return
		}
		archiveURL, err := parseMetaPayload(j.Payload())
		if err != nil {
			s.finish(fmt.Errorf("%w: %w", types.ErrDiscoveryFailed, err))
			return
		}
		logger.Infof(s.runCtx, "meta discovery resolved %s tag %s to %s", s.name, s.tag, archiveURL)
		if err := s.startDownload(archiveURL); err != nil {
			s.finish(fmt.Errorf("%w: %w", types.ErrDownloadFailed, err))
		}

	case s.downloadJob:
		if jobErr != nil {
			// Errors raised by openDisk already name their domain; do not
			// bury them under the download sentinel.
			if types.CodeOf(jobErr) != types.CodeUnknown {
				s.finish(jobErr)
				return
			}
			if s.procErr != nil {
				s.finish(fmt.Errorf("%w: %w", types.ErrSubprocessFailed, s.procErr))
				return
			}
			if s.tar != nil {
				// A broken pipe usually means the extractor died under us.
				// Hold the result until its exit event settles the domain.
				s.streamErr = jobErr
				return
			}
			s.finish(fmt.Errorf("%w: %w", types.ErrDownloadFailed, jobErr))
			return
		}
		s.enterCopy(j)
	}
}

func (s *Session) handleJobProgress(j *job.Job, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	var ph progress.Phase
	switch j {
	case s.simpleJob:
		ph = progress.PhaseSimpleDiscovery
	case s.metaJob:
		ph = progress.PhaseMetaDiscovery
	case s.downloadJob:
		ph = progress.PhaseDownloading
	default:
		return
	}
	s.publish(ph, percent)
}

// handleProcExit reaps the extraction subprocess. An exit before the copy
// phase is remembered and surfaced once the streaming job settles; exits
// from superseded extractors are ignored.
func (s *Session) handleProcExit(proc *extract.Extractor, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if proc != s.tar {
		return
	}
	s.tar = nil

	if s.phase == progress.PhaseCopying {
		if err != nil {
			s.finish(fmt.Errorf("%w: %w", types.ErrSubprocessFailed, err))
			return
		}
		s.finish(s.makeLocalCopy(s.runCtx))
		return
	}
	if s.streamErr != nil {
		if err != nil {
			s.finish(fmt.Errorf("%w: %w", types.ErrSubprocessFailed, err))
			return
		}
		s.finish(fmt.Errorf("%w: %w", types.ErrDownloadFailed, s.streamErr))
		return
	}
	if err != nil {
		s.procErr = err
	}
}

// enterCopy transitions into the copy phase once the streaming job
// delivered all payload bytes. The extractor may still be draining, in
// which case finalization waits for its exit event.
func (s *Session) enterCopy(j *job.Job) {
	s.phase = progress.PhaseCopying
	s.contentSum = j.SumHex()
	s.contentSize = j.Written()
	s.publish(progress.PhaseCopying, 0)

	if s.tar != nil {
		return
	}
	if s.procErr != nil {
		s.finish(fmt.Errorf("%w: %w", types.ErrSubprocessFailed, s.procErr))
		return
	}
	s.finish(s.makeLocalCopy(s.runCtx))
}

func (s *Session) startMetaDiscovery() error {
	u, err := s.metaURL()
	if err != nil {
		return err
	}

	j := job.New(u, s.client)
	j.OnFinished = s.onJobFinished
	j.OnProgress = s.onJobProgress

	s.metaJob = j
	s.phase = progress.PhaseMetaDiscovery
	s.publish(progress.PhaseMetaDiscovery, 0)

	log.WithFunc("pull.startMetaDiscovery").Infof(s.runCtx, "querying %s", u)
	return j.Begin(s.runCtx)
}

func (s *Session) startDownload(archiveURL string) error {
	j := job.New(archiveURL, s.client)
	j.OnFinished = s.onJobFinished
	j.OnProgress = s.onJobProgress
	j.OnOpenDisk = s.openDisk

	s.downloadJob = j
	s.phase = progress.PhaseDownloading
	s.publish(progress.PhaseDownloading, 0)
	return j.Begin(s.runCtx)
}

func (s *Session) metaURL() (string, error) {
	u, err := url.Parse(s.conf.MetaDiscoveryURL)
	if err != nil {
		return "", fmt.Errorf("parse meta discovery endpoint: %w", err)
	}
	q := u.Query()
	q.Set("name", s.name)
	q.Set("version", s.version)
	q.Set("os", strings.ToLower(s.plat.OS))
	q.Set("arch", resolver.TranslateArch(s.plat.Arch))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseMetaPayload(payload []byte) (string, error) {
	var resp struct {
		ArchiveURL string `json:"archiveURL"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return "", fmt.Errorf("parse meta discovery response: %w", err)
	}
	if resp.ArchiveURL == "" {
		return "", fmt.Errorf("meta discovery response carries no archive URL")
	}
	return resp.ArchiveURL, nil
}

// discardStaging kills a live extractor and removes leftover staging
// content so the next discovery tier starts clean. Callers hold s.mu.
func (s *Session) discardStaging() {
	logger := log.WithFunc("pull.discardStaging")
	if s.tar != nil {
		t := s.tar
		s.tar = nil
		if err := t.Kill(); err != nil {
			logger.Warnf(s.runCtx, "kill extractor: %v", err)
		}
	}
	s.procErr = nil
	if s.stagingPath != "" {
		if err := s.snaps.Remove(context.TODO(), s.stagingPath); err != nil {
			logger.Warnf(s.runCtx, "remove staging %s: %v", s.stagingPath, err)
		}
		s.stagingPath = ""
	}
}

// publish pushes a combined progress figure to the notifier, the tracker
// and the debug log. Callers hold s.mu.
func (s *Session) publish(ph progress.Phase, jobPercent int) {
	pct := s.bands.Combined(ph, jobPercent)
	if err := s.notifier.Notify(s.runCtx, notify.Progress(pct)); err != nil {
		log.WithFunc("pull.publish").Debugf(s.runCtx, "notify: %v", err)
	}
	s.tracker.OnEvent(progress.Event{Phase: ph, Percent: pct})
	log.WithFunc("pull.publish").Debugf(s.runCtx, "%s %d%%", ph, pct)
}

// teardown releases everything the session owns. Failures during release
// are logged and never override an already determined result.
func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancel()
	for _, j := range []*job.Job{s.simpleJob, s.metaJob, s.downloadJob} {
		if j != nil {
			j.Cancel()
		}
	}
	logger := log.WithFunc("pull.teardown")
	if s.tar != nil {
		t := s.tar
		s.tar = nil
		if err := t.Kill(); err != nil {
			logger.Warnf(context.TODO(), "kill extractor: %v", err)
		}
	}
	if s.stagingPath != "" {
		if err := s.snaps.Remove(context.TODO(), s.stagingPath); err != nil && !os.IsNotExist(err) {
			logger.Warnf(context.TODO(), "remove staging %s: %v", s.stagingPath, err)
		}
		s.stagingPath = ""
	}
	if s.started && !s.ended {
		s.finish(fmt.Errorf("%w: torn down before completion", types.ErrCancelled))
	}
}
