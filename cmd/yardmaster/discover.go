package yardmaster

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/railwayapp/yardmaster/internal/discovery"
	"github.com/railwayapp/yardmaster/internal/filesystems"
)

func newDiscoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discover [dir]",
		Short: "List the topology documents in a directory",
		Long: `Discover lists every compose file and native manifest in a directory, in the
order yardmaster prefers them. The first entry is the one up, down and ps
load when -f points at the directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.file
			if len(args) > 0 {
				dir = args[0]
			}
			// A file path means its parent directory.
			if stat, err := os.Stat(dir); err == nil && !stat.IsDir() {
				dir = filepath.Dir(dir)
			}
			return discover(cmd.OutOrStdout(), dir)
		},
	}
}

func discover(out io.Writer, dir string) error {
	scanner := discovery.NewScannerWithDetectors(filesystems.NewLocalFS(), discovery.DefaultDetectors())
	configs, err := scanner.DiscoverConfigs(dir)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return fmt.Errorf("%s: %w", dir, discovery.ErrNoTopology)
	}

	for i, config := range configs {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-14s %s\n", marker, config.Type, config.Path)
	}
	return nil
}
