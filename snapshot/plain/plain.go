// Package plain implements snapshot.Snapshotter on ordinary directories
// for image roots without CoW support. Clone degrades to a recursive copy.
package plain

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/projecteru2/acipull/snapshot"
)

// compile-time interface check.
var _ snapshot.Snapshotter = (*Snapshotter)(nil)

// Snapshotter uses plain directories.
type Snapshotter struct{}

// New creates a plain-directory Snapshotter.
func New() *Snapshotter {
	return &Snapshotter{}
}

func (s *Snapshotter) Create(_ context.Context, path string) error {
	if err := os.Mkdir(path, 0o700); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", path, err)
	}
	return nil
}

func (s *Snapshotter) Remove(_ context.Context, path string) error {
	return os.RemoveAll(path)
}

func (s *Snapshotter) Clone(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(dst, 0o700); err != nil {
		return fmt.Errorf("create clone dir %s: %w", dst, err)
	}
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())
		default:
			// Devices, fifos and sockets are skipped; pulled archives do
			// not carry them into local copies.
			return nil
		}
	})
	if err != nil {
		_ = os.RemoveAll(dst)
		return fmt.Errorf("clone %s -> %s: %w", src, dst, err)
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src) //nolint:gosec // path walked from managed snapshot
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm) //nolint:gosec
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
