// Package btrfs implements snapshot.Snapshotter on btrfs subvolumes by
// shelling out to the btrfs tool, the native CoW primitive when the image
// root lives on btrfs.
package btrfs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/projecteru2/acipull/snapshot"
)

// compile-time interface check.
var _ snapshot.Snapshotter = (*Snapshotter)(nil)

// Snapshotter drives btrfs subvolume create/delete/snapshot.
type Snapshotter struct{}

// New creates a btrfs Snapshotter.
func New() *Snapshotter {
	return &Snapshotter{}
}

func (s *Snapshotter) Create(ctx context.Context, path string) error {
	return run(ctx, "subvolume", "create", path)
}

func (s *Snapshotter) Remove(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := run(ctx, "subvolume", "delete", path); err != nil {
		// Extraction may have created nested directories btrfs refuses to
		// delete as a subvolume; fall back to a plain recursive remove.
		return os.RemoveAll(path)
	}
	return nil
}

func (s *Snapshotter) Clone(ctx context.Context, src, dst string) error {
	return run(ctx, "subvolume", "snapshot", src, dst)
}

func run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "btrfs", args...) //nolint:gosec // args are controlled internal paths
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("btrfs %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return nil
}
