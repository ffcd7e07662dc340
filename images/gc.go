package images

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/acipull/config"
	"github.com/projecteru2/acipull/storage"
	"github.com/projecteru2/acipull/utils"
)

// GC runs one collection cycle over the image root:
//
//  1. Remove `.pull-*` staging debris older than utils.StaleTempAge —
//     snapshots abandoned by sessions that never reached teardown. The
//     age guard keeps live staging (owned by a running pull) untouched.
//  2. Drop index entries whose resource directory vanished.
//
// The cycle runs under the index lock via TryLock: a busy lock means a
// pull is committing, so GC skips this run rather than racing it.
func GC(ctx context.Context, conf *config.Config, store storage.Store[Index]) error {
	logger := log.WithFunc("images.GC")

	ok, err := store.TryLock(ctx)
	if err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	if !ok {
		logger.Warnf(ctx, "index busy, skipping GC run")
		return nil
	}
	defer store.Unlock(ctx) //nolint:errcheck

	cutoff := time.Now().Add(-utils.StaleTempAge)
	errs := utils.RemoveMatching(ctx, conf.ImageRoot, func(e os.DirEntry) bool {
		if !strings.HasPrefix(e.Name(), ".pull-") {
			return false
		}
		info, infoErr := e.Info()
		return infoErr == nil && info.ModTime().Before(cutoff)
	})

	if writeErr := store.Write(func(idx *Index) error {
		for name := range idx.Images {
			if !utils.ValidDir(conf.LocalPath(name)) {
				logger.Infof(ctx, "dropping orphan index entry: %s", name)
				delete(idx.Images, name)
			}
		}
		return nil
	}); writeErr != nil {
		errs = append(errs, writeErr)
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("gc errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}
