package yardmaster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/railwayapp/yardmaster/internal/sequencer"
)

func newPsCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "Show the state of every service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.ps(cmd.Context(), cmd.OutOrStdout(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
	return cmd
}

func (a *app) ps(ctx context.Context, out io.Writer, output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unknown output format %q (want table or json)", output)
	}

	topo, seq, release, err := a.session(ctx, nil)
	if err != nil {
		return err
	}
	defer release()

	statuses, err := seq.Status(ctx, topo)
	if err != nil {
		return err
	}
	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}
	return writeStatusTable(out, statuses)
}

func writeStatusTable(out io.Writer, statuses []sequencer.ServiceStatus) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tSTATE\tEXIT\tENDPOINTS\tERROR")
	for _, st := range statuses {
		addrs := make([]string, 0, len(st.Endpoints))
		for _, e := range st.Endpoints {
			addrs = append(addrs, e.Addr)
		}
		exit := "-"
		if st.State == sequencer.Crashed || st.State == sequencer.Stopped {
			exit = fmt.Sprint(st.ExitCode)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", st.Service, st.State, exit, strings.Join(addrs, ","), st.Error)
	}
	return w.Flush()
}
