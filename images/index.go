// Package images maintains the local-image index: one JSON file under the
// image root recording every pull that was materialized under a persistent
// local name. The index is guarded by a cross-process flock shared with GC.
package images

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/projecteru2/core/log"

	"github.com/projecteru2/acipull/config"
	"github.com/projecteru2/acipull/lock/flock"
	"github.com/projecteru2/acipull/storage"
	storejson "github.com/projecteru2/acipull/storage/json"
	"github.com/projecteru2/acipull/types"
)

// Index is the top-level structure of the index.json file.
type Index struct {
	Images map[string]*types.Image `json:"images"` // keyed by local name
}

// Init implements storage.Initer. Called automatically by Store after loading.
func (idx *Index) Init() {
	if idx.Images == nil {
		idx.Images = make(map[string]*types.Image)
	}
}

// NewStore creates the flock-guarded JSON store for the image index.
func NewStore(conf *config.Config) storage.Store[Index] {
	return storejson.New[Index](conf.IndexFile(), flock.New(conf.IndexLock()))
}

// Record registers a finalized local copy, replacing any previous entry
// under the same local name.
func Record(ctx context.Context, store storage.Store[Index], img *types.Image) error {
	return store.Update(ctx, func(idx *Index) error {
		img.CreatedAt = time.Now().UTC()
		idx.Images[img.LocalName] = img
		return nil
	})
}

// List returns all recorded local images sorted by local name.
func List(ctx context.Context, store storage.Store[Index]) (result []*types.Image, err error) {
	err = store.With(ctx, func(idx *Index) error {
		for _, entry := range idx.Images {
			result = append(result, entry)
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool { return result[i].LocalName < result[j].LocalName })
	return
}

// Delete removes local copies by name: the resource directory first, then
// the index entry. Returns the names actually deleted; unknown names are
// logged and skipped.
func Delete(ctx context.Context, conf *config.Config, store storage.Store[Index], names []string) ([]string, error) {
	logger := log.WithFunc("images.Delete")
	var deleted []string
	return deleted, store.Update(ctx, func(idx *Index) error {
		for _, name := range names {
			if _, ok := idx.Images[name]; !ok {
				logger.Infof(ctx, "image %q not found, skipping", name)
				continue
			}
			if err := os.RemoveAll(conf.LocalPath(name)); err != nil {
				return fmt.Errorf("%w: remove %s: %w", types.ErrSnapshotRemove, name, err)
			}
			delete(idx.Images, name)
			deleted = append(deleted, name)
			logger.Infof(ctx, "deleted from index: %s", name)
		}
		return nil
	})
}
