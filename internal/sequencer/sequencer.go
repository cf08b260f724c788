// Package sequencer brings a topology up in dependency order, keeps it
// running and takes it down again.
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
	"github.com/railwayapp/yardmaster/internal/graph"
	"github.com/railwayapp/yardmaster/internal/metrics"
	"github.com/railwayapp/yardmaster/internal/readiness"
	"github.com/railwayapp/yardmaster/internal/runtime"
	"github.com/railwayapp/yardmaster/internal/schema"
)

type Sequencer struct {
	runtime      runtime.Runtime
	logger       *zap.Logger
	metrics      *metrics.Metrics
	waiter       *readiness.Waiter
	env          environment.Environment
	restartDelay time.Duration

	mu        sync.Mutex
	project   string
	dir       string
	instances map[string]*instance
	stopping  map[string]bool
}

func New(rt runtime.Runtime, opts ...Option) *Sequencer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Sequencer{
		runtime:      rt,
		logger:       o.logger,
		metrics:      o.metrics,
		waiter:       readiness.NewWaiter(o.prober, o.interval, o.timeout),
		env:          o.env,
		restartDelay: o.restartDelay,
		instances:    make(map[string]*instance),
		stopping:     make(map[string]bool),
	}
}

// Start brings every service up tier by tier. Services in a tier start
// concurrently and the whole tier is awaited before the next one begins.
// A service whose environment cannot be resolved, or that never becomes
// ready, blocks only its dependents; the returned error joins every
// per-service failure. A dependency cycle fails before anything starts.
func (s *Sequencer) Start(ctx context.Context, topology *schema.Topology) error {
	tiers, err := graph.Tiers(topology)
	if err != nil {
		s.logger.Error("refusing to start topology", zap.String("project", topology.Name), zap.Error(err))
		return err
	}
	s.track(topology)

	for _, v := range topology.Volumes {
		if err := s.runtime.EnsureVolume(ctx, topology.Name, v.Name); err != nil {
			return fmt.Errorf("ensure volume %s: %w", v.Name, err)
		}
	}

	var errs []error
	for i, tier := range tiers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("startup interrupted before tier %d: %w", i+1, err))
			break
		}
		s.logger.Info("starting tier", zap.Int("tier", i+1), zap.Strings("services", tier))

		results := make([]error, len(tier))
		var g errgroup.Group
		for j, name := range tier {
			svc, _ := topology.Service(name)
			if blocker, ok := s.blockedBy(svc); ok {
				s.logger.Warn("not starting service, dependency is not ready",
					zap.String("service", name), zap.String("dependency", blocker))
				continue
			}
			g.Go(func() error {
				results[j] = s.startService(ctx, svc)
				return nil
			})
		}
		_ = g.Wait()
		errs = append(errs, results...)
	}

	s.promote()
	return errors.Join(errs...)
}

// Stop stops services in reverse tier order. Volumes are left in place.
func (s *Sequencer) Stop(ctx context.Context, topology *schema.Topology) error {
	s.track(topology)

	tiers, err := graph.Tiers(topology)
	if err != nil {
		// Cyclic topologies never start, but a runtime may still hold
		// instances from an earlier definition.
		var names []string
		for _, svc := range topology.Services {
			names = append(names, svc.Name)
		}
		tiers = [][]string{names}
	}

	var errs []error
	for _, tier := range graph.Reverse(tiers) {
		results := make([]error, len(tier))
		var g errgroup.Group
		for j, name := range tier {
			g.Go(func() error {
				results[j] = s.stopService(ctx, name)
				return nil
			})
		}
		_ = g.Wait()
		errs = append(errs, results...)
	}
	return errors.Join(errs...)
}

// RemoveVolumes deletes every declared volume and its contents.
func (s *Sequencer) RemoveVolumes(ctx context.Context, topology *schema.Topology) error {
	var errs []error
	for _, v := range topology.Volumes {
		if err := s.runtime.RemoveVolume(ctx, topology.Name, v.Name); err != nil {
			errs = append(errs, fmt.Errorf("remove volume %s: %w", v.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Run starts the topology, supervises it until ctx is cancelled and then
// stops it. Cancelling ctx during startup abandons pending readiness checks
// and shuts down whatever was started.
func (s *Sequencer) Run(ctx context.Context, topology *schema.Topology) error {
	startErr := s.Start(ctx, topology)
	var cycle *graph.CyclicDependencyError
	if errors.As(startErr, &cycle) {
		return startErr
	}

	var superviseErr error
	if ctx.Err() == nil {
		s.logger.Info("topology is up", zap.String("project", topology.Name))
		superviseErr = s.Supervise(ctx)
	}

	s.logger.Info("shutting down", zap.String("project", topology.Name))
	stopErr := s.Stop(context.WithoutCancel(ctx), topology)
	return errors.Join(withoutCancellation(startErr), superviseErr, stopErr)
}

func (s *Sequencer) startService(ctx context.Context, svc schema.Service) error {
	current := s.state(svc.Name)
	if current.Up() {
		return nil
	}

	env, err := environment.ResolveService(svc, s.env)
	if err != nil {
		s.logger.Error("cannot start service", zap.String("service", svc.Name), zap.Error(err))
		s.setErr(svc.Name, err)
		return err
	}

	if current != Starting {
		if err := s.setState(svc.Name, Starting); err != nil {
			return err
		}
	}
	return s.launch(ctx, svc, env)
}

// launch starts the instance and waits for it to become ready. The
// instance must already be Starting.
func (s *Sequencer) launch(ctx context.Context, svc schema.Service, env []string) error {
	name := svc.Name
	logger := s.logger.With(zap.String("service", name))

	s.mu.Lock()
	delete(s.stopping, name)
	inst := runtime.Instance{Project: s.project, Dir: s.dir, Service: svc, Env: env}
	s.mu.Unlock()

	started := time.Now()
	err := s.runtime.Start(ctx, inst)
	s.metrics.ObserveStart(name, err)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fmt.Errorf("service %s: start: %w", name, err)
		logger.Error("failed to start service", zap.Error(err))
		s.fail(name, err)
		return err
	}

	if err := s.awaitReady(ctx, svc); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("service did not become ready", zap.Error(err))
		var crash *RuntimeCrashError
		if errors.As(err, &crash) {
			s.metrics.ObserveCrash(name)
			s.fail(name, err)
		} else {
			s.setErr(name, err)
		}
		return err
	}

	elapsed := time.Since(started)
	s.metrics.ObserveReadiness(name, elapsed)
	if err := s.setState(name, Ready); err != nil {
		return err
	}
	s.setErr(name, nil)
	logger.Info("service ready", zap.Duration("after", elapsed))
	return nil
}

// awaitReady probes every endpoint the runtime reports for svc. A service
// without endpoints is ready once it runs.
func (s *Sequencer) awaitReady(ctx context.Context, svc schema.Service) error {
	project := s.projectName()
	status, err := s.runtime.Inspect(ctx, project, svc.Name)
	if err != nil {
		return fmt.Errorf("service %s: inspect: %w", svc.Name, err)
	}
	if !status.Running {
		return &RuntimeCrashError{Service: svc.Name, ExitCode: status.ExitCode}
	}

	addrs := status.Addrs()
	err = s.waiter.Wait(ctx, addrs)
	if err == nil || ctx.Err() != nil {
		return err
	}

	// An instance that died while being probed crashed rather than timed out.
	if after, ierr := s.runtime.Inspect(ctx, project, svc.Name); ierr == nil && !after.Running {
		return &RuntimeCrashError{Service: svc.Name, ExitCode: after.ExitCode}
	}
	unreachable := addrs
	var nerr *readiness.NotReadyError
	if errors.As(err, &nerr) {
		unreachable = nerr.Pending
	}
	return &StartupTimeoutError{Service: svc.Name, Timeout: s.waiter.Timeout, Endpoints: unreachable, Err: err}
}

func (s *Sequencer) stopService(ctx context.Context, name string) error {
	s.mu.Lock()
	s.stopping[name] = true
	s.mu.Unlock()

	if err := s.runtime.Stop(ctx, s.projectName(), name); err != nil {
		err = fmt.Errorf("service %s: stop: %w", name, err)
		s.logger.Error("failed to stop service", zap.Error(err))
		return err
	}
	if s.state(name) != Stopped {
		if err := s.setState(name, Stopped); err != nil {
			return err
		}
	}
	s.logger.Info("service stopped", zap.String("service", name))
	return nil
}

// blockedBy returns the first dependency of svc that is not ready.
func (s *Sequencer) blockedBy(svc schema.Service) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range svc.Dependencies {
		inst, ok := s.instances[dep]
		if !ok || !inst.state.Up() {
			return dep, true
		}
	}
	return "", false
}

// track registers every service of topology, keeping the state of services
// that are already known.
func (s *Sequencer) track(topology *schema.Topology) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.project = topology.Name
	s.dir = topology.Dir
	for _, svc := range topology.Services {
		if inst, ok := s.instances[svc.Name]; ok {
			inst.service = svc
			continue
		}
		s.instances[svc.Name] = newInstance(svc)
		s.metrics.ObserveTransition(svc.Name, "", string(Pending))
	}
}

// promote moves every Ready service to Running once startup is over.
func (s *Sequencer) promote() {
	s.mu.Lock()
	var ready []string
	for name, inst := range s.instances {
		if inst.state == Ready {
			ready = append(ready, name)
		}
	}
	s.mu.Unlock()

	slices.Sort(ready)
	for _, name := range ready {
		_ = s.setState(name, Running)
	}
}

func (s *Sequencer) setState(name string, next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[name]
	if !ok {
		return fmt.Errorf("service %s is not tracked", name)
	}
	from := inst.state
	if err := inst.transition(next); err != nil {
		s.logger.Warn("rejected state transition", zap.Error(err))
		return err
	}
	s.metrics.ObserveTransition(name, string(from), string(next))
	s.logger.Debug("state transition",
		zap.String("service", name), zap.String("from", string(from)), zap.String("to", string(next)))
	return nil
}

// fail marks the service Crashed and records err.
func (s *Sequencer) fail(name string, err error) {
	_ = s.setState(name, Crashed)
	s.setErr(name, err)
}

func (s *Sequencer) setErr(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.instances[name]; ok {
		inst.err = err
	}
}

func (s *Sequencer) state(name string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.instances[name]; ok {
		return inst.state
	}
	return Pending
}

func (s *Sequencer) service(name string) schema.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instances[name].service
}

func (s *Sequencer) projectName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.project
}

func (s *Sequencer) isStopping(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping[name]
}

func withoutCancellation(err error) error {
	if err == nil {
		return nil
	}
	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	var kept []error
	for _, e := range errs {
		if !errors.Is(e, context.Canceled) {
			kept = append(kept, e)
		}
	}
	return errors.Join(kept...)
}
