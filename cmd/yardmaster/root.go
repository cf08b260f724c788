package yardmaster

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/railwayapp/yardmaster/internal/config"
	"github.com/railwayapp/yardmaster/internal/errkind"
	"github.com/railwayapp/yardmaster/internal/logging"
	"github.com/railwayapp/yardmaster/internal/runtime"
	"github.com/railwayapp/yardmaster/internal/runtime/docker"
)

// runtimeFactory opens the runtime a command drives. The returned func
// releases it.
type runtimeFactory func(cfg config.Config, logger *zap.Logger) (runtime.Runtime, func() error, error)

func dockerRuntime(cfg config.Config, logger *zap.Logger) (runtime.Runtime, func() error, error) {
	rt, err := docker.New(logger, docker.Options{
		Host:        cfg.Docker.Host,
		ProbeHost:   cfg.Readiness.Host,
		StopTimeout: cfg.Docker.StopTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return rt, rt.Close, nil
}

// app carries what every subcommand shares: flags, settings and the logger.
type app struct {
	v          *viper.Viper
	newRuntime runtimeFactory

	cfgFile  string
	file     string
	envFiles []string

	cfg    config.Config
	logger *zap.Logger
}

// NewRootCmd builds the yardmaster command tree backed by Docker.
func NewRootCmd() *cobra.Command {
	return newRootCmd(dockerRuntime)
}

func newRootCmd(newRuntime runtimeFactory) *cobra.Command {
	a := &app{v: config.New(), newRuntime: newRuntime, logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "yardmaster",
		Short: "Start a multi-service topology in dependency order",
		Long: `Yardmaster reads a compose file or a native yardmaster.yaml/toml manifest and runs it:
1. Load - Parse the topology and reject invalid documents up front
2. Order - Group services into dependency tiers, refusing cycles
3. Start - Start each tier concurrently and wait until every service accepts connections
4. Supervise - Restart crashed services with an always policy until shutdown`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			_ = a.logger.Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.yardmaster.yaml)")
	flags.StringVarP(&a.file, "file", "f", ".", "topology document, or a directory holding one")
	flags.StringArrayVar(&a.envFiles, "env-file", nil, "dotenv file to read variables from (repeatable, later files win)")
	flags.StringP("project-name", "p", "", "project name (default from the document or its directory)")
	flags.Bool("verbose", false, "human-readable debug logging")
	_ = a.v.BindPFlag("project", flags.Lookup("project-name"))
	_ = a.v.BindPFlag("logging.development", flags.Lookup("verbose"))

	cmd.AddCommand(
		newUpCmd(a),
		newDownCmd(a),
		newPsCmd(a),
		newConfigCmd(a),
		newEnvCmd(a),
		newDiscoverCmd(a),
	)
	return cmd
}

func (a *app) init() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	if used := a.v.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", zap.String("path", used))
	}
	return nil
}

// Execute runs the root command and exits with the code for the failure kind.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(errkind.ExitCode(err))
	}
}

// describe prefixes err with its kind so the message names what failed.
func describe(err error) string {
	if kind := errkind.Of(err); kind != errkind.Unknown {
		return kind.String() + ": " + err.Error()
	}
	return err.Error()
}
