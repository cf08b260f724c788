package yardmaster

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/railwayapp/yardmaster/internal/metrics"
)

func newUpCmd(a *app) *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start every service in dependency order",
		Long: `Up starts the topology tier by tier. A service starts only after all of its
dependencies accept connections. In the foreground, up supervises the services
until interrupted and then stops them in reverse order. With --detach it
returns once startup finishes and leaves the services running. An interrupt
during startup stops whatever has already started.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.up(cmd.Context(), cmd.OutOrStdout(), detach)
		},
	}

	cmd.Flags().BoolVarP(&detach, "detach", "d", false, "start the services and exit")
	cmd.Flags().Duration("timeout", 60*time.Second, "how long each service may take to accept connections")
	_ = a.v.BindPFlag("readiness.timeout", cmd.Flags().Lookup("timeout"))
	return cmd
}

func (a *app) up(ctx context.Context, out io.Writer, detach bool) error {
	m := metrics.New()
	topo, seq, release, err := a.session(ctx, m)
	if err != nil {
		return err
	}
	defer release()

	if detach {
		startErr := seq.Start(ctx, topo)
		if ctx.Err() != nil {
			// Interrupted: nothing started so far is left behind.
			stopErr := seq.Stop(context.WithoutCancel(ctx), topo)
			return errors.Join(startErr, stopErr)
		}
		statuses, err := seq.Status(ctx, topo)
		if err != nil {
			return errors.Join(startErr, err)
		}
		if err := writeStatusTable(out, statuses); err != nil {
			return errors.Join(startErr, err)
		}
		return startErr
	}

	if a.cfg.Metrics.Addr != "" {
		shutdown := a.serveMetrics(m)
		defer shutdown()
	}
	return seq.Run(ctx, topo)
}

// serveMetrics exposes m on metrics.addr until the returned func is called.
func (a *app) serveMetrics(m *metrics.Metrics) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("serving metrics", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}
