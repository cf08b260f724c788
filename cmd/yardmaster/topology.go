package yardmaster

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/railwayapp/yardmaster/internal/environment"
	"github.com/railwayapp/yardmaster/internal/metrics"
	"github.com/railwayapp/yardmaster/internal/parser"
	"github.com/railwayapp/yardmaster/internal/runtime"
	"github.com/railwayapp/yardmaster/internal/schema"
	"github.com/railwayapp/yardmaster/internal/sequencer"
)

// environment is the process environment overlaid on the --env-file files.
func (a *app) environment() (environment.Environment, error) {
	return environment.FromOS(a.envFiles...)
}

func (a *app) topology(ctx context.Context, env environment.Environment) (*schema.Topology, error) {
	topo, err := parser.Load(ctx, a.file, env)
	if err != nil {
		return nil, err
	}
	if a.cfg.Project != "" {
		topo.Name = strings.ToLower(a.cfg.Project)
	}
	return topo, nil
}

func (a *app) sequencer(rt runtime.Runtime, env environment.Environment, m *metrics.Metrics) *sequencer.Sequencer {
	return sequencer.New(rt,
		sequencer.WithLogger(a.logger),
		sequencer.WithMetrics(m),
		sequencer.WithEnvironment(env),
		sequencer.WithReadiness(a.cfg.Readiness.Interval, a.cfg.Readiness.Timeout),
		sequencer.WithRestartDelay(a.cfg.Restart.Delay),
	)
}

// session loads everything a runtime-backed command needs. The returned
// func closes the runtime.
func (a *app) session(ctx context.Context, m *metrics.Metrics) (*schema.Topology, *sequencer.Sequencer, func(), error) {
	env, err := a.environment()
	if err != nil {
		return nil, nil, nil, err
	}
	topo, err := a.topology(ctx, env)
	if err != nil {
		return nil, nil, nil, err
	}
	rt, closeRuntime, err := a.newRuntime(a.cfg, a.logger)
	if err != nil {
		return nil, nil, nil, err
	}
	release := func() {
		if err := closeRuntime(); err != nil {
			a.logger.Warn("failed to close runtime", zap.Error(err))
		}
	}
	return topo, a.sequencer(rt, env, m), release, nil
}
