package yardmaster

import (
	"context"

	"github.com/spf13/cobra"
)

func newDownCmd(a *app) *cobra.Command {
	var volumes bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Stop every service in reverse dependency order",
		Long: `Down stops dependents before the services they depend on. Named volumes and
their contents are kept unless --volumes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.down(cmd.Context(), volumes)
		},
	}
	cmd.Flags().BoolVarP(&volumes, "volumes", "v", false, "also remove named volumes and their contents")
	return cmd
}

func (a *app) down(ctx context.Context, volumes bool) error {
	topo, seq, release, err := a.session(ctx, nil)
	if err != nil {
		return err
	}
	defer release()

	// Stopping must finish even if the user interrupts again.
	ctx = context.WithoutCancel(ctx)
	if err := seq.Stop(ctx, topo); err != nil {
		return err
	}
	if volumes {
		return seq.RemoveVolumes(ctx, topo)
	}
	return nil
}
