package yardmaster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/railwayapp/yardmaster/internal/environment"
)

func newEnvCmd(a *app) *cobra.Command {
	var reveal bool

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Show the environment each service would start with",
		Long: `Env lists the variables each service declares and where their values come
from. Required names are looked up in the process environment and any
--env-file files. Sensitive values are masked. The command fails with
MissingEnvironment if any required name has no value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.env(cmd.Context(), cmd.OutOrStdout(), reveal)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print sensitive values unmasked")
	return cmd
}

func (a *app) env(ctx context.Context, out io.Writer, reveal bool) error {
	env, err := a.environment()
	if err != nil {
		return err
	}
	topo, err := a.topology(ctx, env)
	if err != nil {
		return err
	}

	show := func(key, value string) string {
		if !reveal && environment.IsSensitive(key, value) {
			return environment.Mask(value)
		}
		return value
	}

	var errs []error
	for _, svc := range topo.Services {
		fmt.Fprintf(out, "=== %s ===\n", svc.Name)
		if len(svc.Environment.Required) == 0 && len(svc.Environment.Literals) == 0 {
			fmt.Fprintln(out, "  (no variables)")
		}
		for _, key := range svc.Environment.Required {
			value, ok := env.Lookup(key)
			if !ok {
				fmt.Fprintf(out, "  %s (missing)\n", key)
				continue
			}
			fmt.Fprintf(out, "  %s=%s (environment)\n", key, show(key, value))
		}
		for _, key := range slices.Sorted(maps.Keys(svc.Environment.Literals)) {
			fmt.Fprintf(out, "  %s=%s (document)\n", key, show(key, svc.Environment.Literals[key]))
		}
		fmt.Fprintln(out)

		if _, err := environment.ResolveService(svc, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
