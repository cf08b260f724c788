// Package runtimetest provides an in-memory runtime for tests.
package runtimetest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/railwayapp/yardmaster/internal/runtime"
	"github.com/railwayapp/yardmaster/internal/schema"
)

// Event is one recorded call to Start.
type Event struct {
	Service string
	At      time.Time
	Env     []string
}

type instance struct {
	running  bool
	exitCode int
	starts   int
	exited   chan struct{}
}

type volume struct {
	created int
	files   map[string]string
}

// Runtime records what the sequencer asks of it. Instances are running from
// Start until Stop or Exit.
type Runtime struct {
	mu        sync.Mutex
	instances map[string]*instance
	volumes   map[string]*volume
	starts    []Event
	stops     []string
	endpoints map[string][]runtime.Endpoint
	startErr  map[string]error
	onStart   func(service string)
}

var _ runtime.Runtime = (*Runtime)(nil)

func New() *Runtime {
	return &Runtime{
		instances: make(map[string]*instance),
		volumes:   make(map[string]*volume),
		endpoints: make(map[string][]runtime.Endpoint),
		startErr:  make(map[string]error),
	}
}

// SetEndpoints makes Inspect report addrs for service.
func (r *Runtime) SetEndpoints(service string, addrs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps := make([]runtime.Endpoint, 0, len(addrs))
	for i, a := range addrs {
		eps = append(eps, runtime.Endpoint{Port: i + 1, Addr: a})
	}
	r.endpoints[service] = eps
}

// FailStart makes every Start of service return err.
func (r *Runtime) FailStart(service string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startErr[service] = err
}

// OnStart registers a hook called after every successful Start.
func (r *Runtime) OnStart(fn func(service string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStart = fn
}

func (r *Runtime) EnsureVolume(ctx context.Context, project, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := project + "_" + name
	if _, ok := r.volumes[key]; !ok {
		r.volumes[key] = &volume{files: make(map[string]string)}
	}
	r.volumes[key].created++
	return nil
}

func (r *Runtime) RemoveVolume(ctx context.Context, project, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.volumes, project+"_"+name)
	return nil
}

func (r *Runtime) Start(ctx context.Context, inst runtime.Instance) error {
	name := inst.Service.Name

	r.mu.Lock()
	if err := r.startErr[name]; err != nil {
		r.mu.Unlock()
		return err
	}
	for _, m := range inst.Service.Mounts {
		if _, ok := r.volumes[inst.Project+"_"+m.Source]; !ok && m.Kind == schema.MountVolume {
			r.mu.Unlock()
			return fmt.Errorf("volume %q was not created", m.Source)
		}
	}

	in, ok := r.instances[name]
	if !ok {
		in = &instance{}
		r.instances[name] = in
	}
	if in.running {
		r.mu.Unlock()
		return nil
	}
	in.running = true
	in.exitCode = 0
	in.starts++
	in.exited = make(chan struct{})
	r.starts = append(r.starts, Event{Service: name, At: time.Now(), Env: slices.Clone(inst.Env)})
	hook := r.onStart
	r.mu.Unlock()

	if hook != nil {
		hook(name)
	}
	return nil
}

func (r *Runtime) Stop(ctx context.Context, project, service string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops = append(r.stops, service)
	if in, ok := r.instances[service]; ok && in.running {
		in.running = false
		in.exitCode = 0
		close(in.exited)
	}
	return nil
}

// Exit simulates service terminating on its own with code.
func (r *Runtime) Exit(service string, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in, ok := r.instances[service]; ok && in.running {
		in.running = false
		in.exitCode = code
		close(in.exited)
	}
}

func (r *Runtime) Wait(ctx context.Context, project, service string) (int, error) {
	r.mu.Lock()
	in, ok := r.instances[service]
	if !ok {
		r.mu.Unlock()
		return 0, fmt.Errorf("instance %q: %w", service, runtime.ErrNotFound)
	}
	exited := in.exited
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-exited:
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return in.exitCode, nil
}

func (r *Runtime) Inspect(ctx context.Context, project, service string) (runtime.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.instances[service]
	if !ok {
		return runtime.Status{}, nil
	}
	return runtime.Status{
		Exists:    true,
		Running:   in.running,
		ExitCode:  in.exitCode,
		Endpoints: slices.Clone(r.endpoints[service]),
	}, nil
}

// WriteFile stores content in a volume, standing in for a container writing
// to its mount.
func (r *Runtime) WriteFile(project, name, path, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.volumes[project+"_"+name]
	if !ok {
		return fmt.Errorf("volume %q: %w", name, runtime.ErrNotFound)
	}
	v.files[path] = content
	return nil
}

func (r *Runtime) ReadFile(project, name, path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.volumes[project+"_"+name]
	if !ok {
		return "", false
	}
	content, ok := v.files[path]
	return content, ok
}

// VolumeEnsures counts EnsureVolume calls for a volume that still exists.
func (r *Runtime) VolumeEnsures(project, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.volumes[project+"_"+name]; ok {
		return v.created
	}
	return 0
}

func (r *Runtime) Volumes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.volumes))
}

func (r *Runtime) Starts() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.starts)
}

func (r *Runtime) StartOrder() []string {
	var names []string
	for _, e := range r.Starts() {
		names = append(names, e.Service)
	}
	return names
}

func (r *Runtime) Stops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.stops)
}

func (r *Runtime) StartCount(service string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in, ok := r.instances[service]; ok {
		return in.starts
	}
	return 0
}

func (r *Runtime) Running(service string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.instances[service]
	return ok && in.running
}
