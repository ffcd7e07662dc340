package images

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/projecteru2/core/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	cmdcore "github.com/projecteru2/acipull/cmd/core"
	"github.com/projecteru2/acipull/config"
	"github.com/projecteru2/acipull/images"
	"github.com/projecteru2/acipull/notify"
	"github.com/projecteru2/acipull/progress"
	"github.com/projecteru2/acipull/pull"
	"github.com/projecteru2/acipull/snapshot"
	"github.com/projecteru2/acipull/storage"
)

type Handler struct {
	cmdcore.BaseHandler
}

func (h Handler) Pull(cmd *cobra.Command, args []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}

	tag, _ := cmd.Flags().GetString("tag")
	local, _ := cmd.Flags().GetString("local")
	force, _ := cmd.Flags().GetBool("force")

	if local != "" && len(args) > 1 {
		return fmt.Errorf("--local names a single image, got %d", len(args))
	}

	snaps, err := cmdcore.InitSnapshotter(conf)
	if err != nil {
		return err
	}
	store, err := cmdcore.InitIndexStore(conf)
	if err != nil {
		return err
	}
	notifier := notify.NewSocket()

	pool, ctx := errgroup.WithContext(ctx)
	pool.SetLimit(conf.PoolSize)
	for _, name := range args {
		name := name
		pool.Go(func() error {
			return h.pullOne(ctx, conf, snaps, store, notifier, name, tag, local, force)
		})
	}
	return pool.Wait()
}

func (h Handler) pullOne(
	ctx context.Context, conf *config.Config,
	snaps snapshot.Snapshotter, store storage.Store[images.Index], notifier notify.Notifier,
	name, tag, local string, force bool,
) error {
	session, err := pull.New(ctx, conf, pull.Options{
		Snapshotter: snaps,
		Store:       store,
		Notifier:    notifier,
		Tracker:     newPullTracker(ctx, name),
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second) //nolint:mnd
		defer cancel()
		_ = session.Close(closeCtx)
	}()

	if err := session.Start(name, tag, local, force); err != nil {
		return fmt.Errorf("pull %s: %w", name, err)
	}
	if err := session.Wait(ctx); err != nil {
		return fmt.Errorf("pull %s: %w", name, err)
	}
	log.WithFunc("cmd.pull").Infof(ctx, "done: %s", name)
	return nil
}

// newPullTracker renders combined progress: a carriage-return line on a
// terminal, a log line per phase change otherwise.
func newPullTracker(ctx context.Context, name string) progress.Tracker {
	logger := log.WithFunc("cmd.pull")
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	lastPhase := progress.PhaseIdle
	return progress.NewTracker(func(e progress.Event) {
		if interactive {
			fmt.Printf("\r%s: %-16s %3d%%", name, e.Phase, e.Percent)
			if e.Phase == progress.PhaseDone || e.Phase == progress.PhaseFailed {
				fmt.Println()
			}
			return
		}
		if e.Phase != lastPhase {
			lastPhase = e.Phase
			logger.Infof(ctx, "%s: %s (%d%%)", name, e.Phase, e.Percent)
		}
	})
}

func (h Handler) List(cmd *cobra.Command, _ []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	store, err := cmdcore.InitIndexStore(conf)
	if err != nil {
		return err
	}

	all, err := images.List(ctx, store)
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	if len(all) == 0 {
		fmt.Println("No images found.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LOCAL NAME\tIMAGE\tTAG\tDIGEST\tSIZE\tCREATED")
	for _, img := range all {
		digest := img.ContentSum.String()
		if len(digest) > 19 {
			digest = digest[:19]
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			img.LocalName,
			img.Name,
			img.Tag,
			digest,
			cmdcore.FormatSize(img.Size),
			img.CreatedAt.Local().Format(time.DateTime),
		)
	}
	w.Flush() //nolint:errcheck,gosec
	return nil
}

func (h Handler) Delete(cmd *cobra.Command, args []string) error {
	ctx, conf, err := h.Init(cmd)
	if err != nil {
		return err
	}
	logger := log.WithFunc("cmd.delete")
	store, err := cmdcore.InitIndexStore(conf)
	if err != nil {
		return err
	}

	deleted, err := images.Delete(ctx, conf, store, args)
	if err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	for _, name := range deleted {
		logger.Infof(ctx, "deleted: %s", name)
	}
	if len(deleted) == 0 {
		logger.Infof(ctx, "no matching images found")
	}
	return nil
}
