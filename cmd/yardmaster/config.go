package yardmaster

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/railwayapp/yardmaster/internal/export"
)

func newConfigCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate the topology and print it",
		Long: `Config loads and validates the topology without touching the runtime. The
yaml and toml formats print a native manifest that loads back to the same
topology, which converts a compose file to yardmaster.yaml or yardmaster.toml.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.config(cmd.Context(), cmd.OutOrStdout(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (yaml, json, toml)")
	return cmd
}

func (a *app) config(ctx context.Context, out io.Writer, output string) error {
	exporter, err := export.ForFormat(output)
	if err != nil {
		return err
	}

	env, err := a.environment()
	if err != nil {
		return err
	}
	topo, err := a.topology(ctx, env)
	if err != nil {
		return err
	}

	data, err := exporter.Export(topo)
	if err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}
	_, err = out.Write(data)
	return err
}
