package pull

import (
	"context"
	"fmt"
	"os"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/acipull/images"
	"github.com/projecteru2/acipull/types"
	"github.com/projecteru2/acipull/utils"
)

// makeLocalCopy materializes the staged content under the requested local
// name. Without a local name the pull is content-only and this is a no-op.
// The copy is cloned to a temporary sibling first so the visible name is
// replaced atomically; with force set an existing name is swapped out so
// there is never a window with neither the old nor the new content in
// place. Callers hold s.mu.
func (s *Session) makeLocalCopy(ctx context.Context) error {
	if s.local == "" {
		return nil
	}
	if s.stagingPath == "" {
		return fmt.Errorf("%w: no content was staged", types.ErrDownloadFailed)
	}
	logger := log.WithFunc("pull.makeLocalCopy")

	target := s.conf.LocalPath(s.local)
	_, statErr := os.Lstat(target)
	exists := statErr == nil

	if exists && !s.force {
		return fmt.Errorf("%w: %s", types.ErrLocalNameExists, s.local)
	}

	tmp := utils.TempName(target)
	if err := s.snaps.Clone(ctx, s.stagingPath, tmp); err != nil {
		return fmt.Errorf("%w: clone staging: %w", types.ErrSnapshotCreate, err)
	}

	switch {
	case exists:
		if err := utils.ExchangePaths(tmp, target); err != nil {
			s.removeQuietly(ctx, tmp)
			return fmt.Errorf("%w: replace %s: %w", types.ErrSnapshotCreate, s.local, err)
		}
		// tmp now holds the displaced old content.
		s.removeQuietly(ctx, tmp)
	default:
		if err := os.Rename(tmp, target); err != nil {
			s.removeQuietly(ctx, tmp)
			if os.IsExist(err) {
				return fmt.Errorf("%w: %s", types.ErrLocalNameExists, s.local)
			}
			return fmt.Errorf("%w: rename into place: %w", types.ErrSnapshotCreate, err)
		}
	}

	logger.Infof(ctx, "pulled %s tag %s into %s", s.name, s.tag, target)

	if s.store != nil {
		img := &types.Image{
			LocalName:  s.local,
			Name:       s.name,
			Tag:        s.tag,
			ContentSum: types.NewDigest(s.contentSum),
			Size:       utils.DirSize(target),
		}
		if err := images.Record(ctx, s.store, img); err != nil {
			logger.Warnf(ctx, "record %s in image index: %v", s.local, err)
		}
	}
	return nil
}

func (s *Session) removeQuietly(ctx context.Context, path string) {
	if err := s.snaps.Remove(ctx, path); err != nil {
		log.WithFunc("pull.makeLocalCopy").Warnf(ctx, "remove %s: %v", path, err)
	}
}
