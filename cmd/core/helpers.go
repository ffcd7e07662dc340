package core

import (
	"context"
	"fmt"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/projecteru2/acipull/config"
	"github.com/projecteru2/acipull/images"
	"github.com/projecteru2/acipull/snapshot"
	"github.com/projecteru2/acipull/snapshot/btrfs"
	"github.com/projecteru2/acipull/snapshot/plain"
	"github.com/projecteru2/acipull/storage"
)

// BaseHandler provides shared config access for all command handlers.
type BaseHandler struct {
	ConfProvider func() *config.Config
}

// Init returns the command context and validated config in one call.
func (h BaseHandler) Init(cmd *cobra.Command) (context.Context, *config.Config, error) {
	conf, err := h.Conf()
	if err != nil {
		return nil, nil, err
	}
	return CommandContext(cmd), conf, nil
}

// Conf validates and returns the config. All handlers call this first.
func (h BaseHandler) Conf() (*config.Config, error) {
	if h.ConfProvider == nil {
		return nil, fmt.Errorf("config provider is nil")
	}
	conf := h.ConfProvider()
	if conf == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	return conf, nil
}

// CommandContext returns command context, falling back to Background.
func CommandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// InitSnapshotter picks the copy-on-write backend for the image root:
// btrfs subvolumes when the root sits on btrfs, plain directory copies
// otherwise.
func InitSnapshotter(conf *config.Config) (snapshot.Snapshotter, error) {
	if err := conf.EnsureImageRoot(); err != nil {
		return nil, fmt.Errorf("ensure image root: %w", err)
	}
	if snapshot.IsBtrfs(conf.ImageRoot) {
		return btrfs.New(), nil
	}
	return plain.New(), nil
}

// InitIndexStore opens the flock-guarded local image index.
func InitIndexStore(conf *config.Config) (storage.Store[images.Index], error) {
	if err := conf.EnsureImageRoot(); err != nil {
		return nil, fmt.Errorf("ensure image root: %w", err)
	}
	return images.NewStore(conf), nil
}

func FormatSize(bytes int64) string {
	return units.HumanSize(float64(bytes))
}
