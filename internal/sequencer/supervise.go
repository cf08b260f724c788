package sequencer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/railwayapp/yardmaster/internal/environment"
	"github.com/railwayapp/yardmaster/internal/schema"
)

// Supervise watches every instance that is up until ctx is done. An
// instance that exits on its own is marked Crashed; under the always policy
// it is started again and re-checked for readiness. The returned error joins
// the crashes that were not recovered.
func (s *Sequencer) Supervise(ctx context.Context) error {
	s.mu.Lock()
	var names []string
	for name, inst := range s.instances {
		if inst.state.Up() {
			names = append(names, name)
		}
	}
	s.mu.Unlock()
	slices.Sort(names)

	var (
		mu      sync.Mutex
		crashes []error
	)
	var g errgroup.Group
	for _, name := range names {
		g.Go(func() error {
			if err := s.watch(ctx, name); err != nil {
				mu.Lock()
				crashes = append(crashes, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(crashes...)
}

func (s *Sequencer) watch(ctx context.Context, name string) error {
	logger := s.logger.With(zap.String("service", name))
	project := s.projectName()

	for {
		code, err := s.runtime.Wait(ctx, project, name)
		if ctx.Err() != nil || s.isStopping(name) {
			return nil
		}
		if err != nil {
			logger.Error("lost track of instance", zap.Error(err))
			return fmt.Errorf("service %s: wait: %w", name, err)
		}

		crash := &RuntimeCrashError{Service: name, ExitCode: code}
		logger.Warn("instance exited unexpectedly", zap.Int("exitCode", code))
		s.metrics.ObserveCrash(name)
		s.fail(name, crash)

		svc := s.service(name)
		if svc.Restart != schema.RestartAlways {
			return crash
		}
		if !s.restartUntilReady(ctx, svc) {
			return nil
		}
	}
}

// restartUntilReady keeps restarting svc until it is ready again. It
// returns false when ctx ends first.
func (s *Sequencer) restartUntilReady(ctx context.Context, svc schema.Service) bool {
	logger := s.logger.With(zap.String("service", svc.Name))
	timer := time.NewTimer(s.restartDelay)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}

		err := s.restart(ctx, svc)
		if err == nil {
			logger.Info("service restarted", zap.Int("attempt", attempt))
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		logger.Error("restart failed", zap.Int("attempt", attempt), zap.Error(err))
		timer.Reset(s.restartDelay)
	}
}

func (s *Sequencer) restart(ctx context.Context, svc schema.Service) error {
	if s.state(svc.Name) != Starting {
		if err := s.setState(svc.Name, Starting); err != nil {
			return err
		}
		s.metrics.ObserveRestart(svc.Name)
	}

	env, err := environment.ResolveService(svc, s.env)
	if err != nil {
		return err
	}
	if err := s.launch(ctx, svc, env); err != nil {
		return err
	}
	return s.setState(svc.Name, Running)
}
