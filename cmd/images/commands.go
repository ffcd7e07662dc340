package images

import "github.com/spf13/cobra"

// Actions defines the image subcommand surface.
type Actions interface {
	Pull(cmd *cobra.Command, args []string) error
	List(cmd *cobra.Command, args []string) error
	Delete(cmd *cobra.Command, args []string) error
}

// Commands builds image command set.
func Commands(h Actions) []*cobra.Command {
	pull := &cobra.Command{
		Use:   "pull NAME [NAME...]",
		Short: "Pull ACI image(s) by name",
		Args:  cobra.MinimumNArgs(1),
		RunE:  h.Pull,
	}
	pull.Flags().String("tag", "latest", "image tag, bare version or version=...,label=... list")
	pull.Flags().String("local", "", "persistent local name for the pulled content (single image only)")
	pull.Flags().Bool("force", false, "replace an existing local name atomically")

	return []*cobra.Command{
		pull,
		{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List locally stored images",
			RunE:    h.List,
		},
		{
			Use:   "delete NAME [NAME...]",
			Short: "Delete locally stored image(s) by local name",
			Args:  cobra.MinimumNArgs(1),
			RunE:  h.Delete,
		},
	}
}
