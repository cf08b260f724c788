// Package runtime defines how the sequencer drives service instances.
package runtime

import (
	"context"
	"errors"

	"github.com/railwayapp/yardmaster/internal/schema"
)

// ErrNotFound is returned when an instance or volume does not exist.
var ErrNotFound = errors.New("not found")

// Instance is everything a runtime needs to start one service.
type Instance struct {
	Project string
	// Dir anchors relative bind mount sources.
	Dir     string
	Service schema.Service
	Env     []string
}

// Endpoint is an address the sequencer probes to decide readiness.
type Endpoint struct {
	Port int    `json:"port"`
	Addr string `json:"addr"`
}

// Status is the runtime's view of a service instance.
type Status struct {
	Exists    bool       `json:"exists"`
	Running   bool       `json:"running"`
	ExitCode  int        `json:"exitCode"`
	Endpoints []Endpoint `json:"endpoints,omitempty"`
}

func (s Status) Addrs() []string {
	addrs := make([]string, 0, len(s.Endpoints))
	for _, e := range s.Endpoints {
		addrs = append(addrs, e.Addr)
	}
	return addrs
}

// Runtime creates and removes service instances and volumes. Start, Stop,
// EnsureVolume and RemoveVolume are idempotent.
type Runtime interface {
	EnsureVolume(ctx context.Context, project, volume string) error
	RemoveVolume(ctx context.Context, project, volume string) error
	Start(ctx context.Context, instance Instance) error
	Stop(ctx context.Context, project, service string) error
	// Wait blocks until the instance exits and returns its exit code.
	Wait(ctx context.Context, project, service string) (int, error)
	Inspect(ctx context.Context, project, service string) (Status, error)
}
