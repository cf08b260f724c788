// Package docker runs service instances as Docker containers.
package docker

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/moby/moby/client"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/railwayapp/yardmaster/internal/runtime"
)

const (
	LabelProject   = "yardmaster.project"
	LabelService   = "yardmaster.service"
	LabelVolume    = "yardmaster.volume"
	LabelRun       = "yardmaster.run"
	LabelEndpoints = "yardmaster.endpoints"
)

// Options configures the Docker runtime.
type Options struct {
	// Host overrides DOCKER_HOST when set.
	Host string
	// ProbeHost is the address published ports are probed on.
	ProbeHost string
	// StopTimeout is the grace period in seconds before a container is killed.
	StopTimeout int
}

type Runtime struct {
	client      apiClient
	logger      *zap.Logger
	probeHost   string
	stopTimeout int
	runID       string
	pulls       singleflight.Group
	networks    singleflight.Group
}

var _ runtime.Runtime = (*Runtime)(nil)

// New connects to the Docker daemon configured by the environment.
func New(logger *zap.Logger, opts Options) (*Runtime, error) {
	clientOpts := []client.Opt{client.FromEnv}
	if opts.Host != "" {
		clientOpts = append(clientOpts, client.WithHost(opts.Host))
	}
	c, err := client.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newRuntime(c, logger, opts), nil
}

func newRuntime(c apiClient, logger *zap.Logger, opts Options) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	probeHost := opts.ProbeHost
	if probeHost == "" {
		probeHost = "127.0.0.1"
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 10
	}
	runID := uuid.NewString()
	return &Runtime{
		client:      c,
		logger:      logger.With(zap.String("run", runID)),
		probeHost:   probeHost,
		stopTimeout: stopTimeout,
		runID:       runID,
	}
}

func (r *Runtime) Close() error {
	return r.client.Close()
}

// ContainerName is the container name of a service within a project.
func ContainerName(project, service string) string {
	return project + "-" + service
}

// VolumeName is the Docker volume backing a declared volume.
func VolumeName(project, volume string) string {
	return project + "_" + volume
}

// NetworkName is the network every service of a project joins.
func NetworkName(project string) string {
	return project + "_default"
}

func (r *Runtime) labels(project string, extra map[string]string) map[string]string {
	labels := map[string]string{
		LabelProject: project,
		LabelRun:     r.runID,
	}
	for k, v := range extra {
		labels[k] = v
	}
	return labels
}
