package docker

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/client"
	"go.uber.org/zap"

	"github.com/railwayapp/yardmaster/internal/runtime"
)

// Start creates and starts the service container. A container that is
// already running is left alone; a stopped one is replaced so the new
// environment takes effect.
func (r *Runtime) Start(ctx context.Context, inst runtime.Instance) error {
	name := ContainerName(inst.Project, inst.Service.Name)
	logger := r.logger.With(zap.String("container", name))

	inspect, err := r.client.ContainerInspect(ctx, name, client.ContainerInspectOptions{})
	switch {
	case err == nil:
		if state := inspect.Container.State; state != nil && (state.Running || state.Restarting) {
			logger.Debug("container already running")
			return nil
		}
		if _, err := r.client.ContainerRemove(ctx, name, client.ContainerRemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
			return fmt.Errorf("remove stale container %q: %w", name, err)
		}
	case !errdefs.IsNotFound(err):
		return fmt.Errorf("inspect container %q: %w", name, err)
	}

	spec, err := r.buildSpec(inst)
	if err != nil {
		return err
	}
	if err := r.ensureNetwork(ctx, inst.Project); err != nil {
		return err
	}
	if err := r.ensureImage(ctx, inst.Service.Image); err != nil {
		return err
	}

	created, err := r.client.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:           spec.config,
		HostConfig:       spec.hostConfig,
		NetworkingConfig: spec.networking,
		Name:             name,
	})
	if err != nil {
		return fmt.Errorf("create container %q: %w", name, err)
	}
	if _, err := r.client.ContainerStart(ctx, created.ID, client.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", name, err)
	}

	logger.Info("started container", zap.String("id", created.ID), zap.String("image", inst.Service.Image))
	return nil
}

// Stop stops and removes the service container. Named volumes survive.
func (r *Runtime) Stop(ctx context.Context, project, service string) error {
	name := ContainerName(project, service)
	timeout := r.stopTimeout

	if _, err := r.client.ContainerStop(ctx, name, client.ContainerStopOptions{Timeout: &timeout}); err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("stop container %q: %w", name, err)
	}
	if _, err := r.client.ContainerRemove(ctx, name, client.ContainerRemoveOptions{Force: true}); err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %q: %w", name, err)
	}

	r.logger.Info("stopped container", zap.String("container", name))
	return nil
}

func (r *Runtime) Wait(ctx context.Context, project, service string) (int, error) {
	name := ContainerName(project, service)
	wait := r.client.ContainerWait(ctx, name, client.ContainerWaitOptions{Condition: container.WaitConditionNotRunning})

	select {
	case err := <-wait.Error:
		if errdefs.IsNotFound(err) {
			return 0, fmt.Errorf("wait container %q: %w", name, runtime.ErrNotFound)
		}
		return 0, fmt.Errorf("wait container %q: %w", name, err)
	case res := <-wait.Result:
		if res.Error != nil && res.Error.Message != "" {
			return int(res.StatusCode), fmt.Errorf("wait container %q: %s", name, res.Error.Message)
		}
		return int(res.StatusCode), nil
	}
}

// Inspect reports the container state and the addresses its ports can be
// probed on. A missing container is reported as not existing, not as an
// error.
func (r *Runtime) Inspect(ctx context.Context, project, service string) (runtime.Status, error) {
	name := ContainerName(project, service)

	inspect, err := r.client.ContainerInspect(ctx, name, client.ContainerInspectOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return runtime.Status{}, nil
		}
		return runtime.Status{}, fmt.Errorf("inspect container %q: %w", name, err)
	}

	c := inspect.Container
	status := runtime.Status{Exists: true}
	if c.State != nil {
		status.Running = c.State.Running || c.State.Restarting
		status.ExitCode = c.State.ExitCode
	}

	var label string
	if c.Config != nil {
		label = c.Config.Labels[LabelEndpoints]
	}
	containerIP := ""
	if c.NetworkSettings != nil {
		if ep := c.NetworkSettings.Networks[NetworkName(project)]; ep != nil && ep.IPAddress.IsValid() {
			containerIP = ep.IPAddress.String()
		}
	}

	for _, pair := range decodeEndpoints(label) {
		var addr string
		switch {
		case pair.host != 0:
			addr = net.JoinHostPort(r.probeHost, strconv.Itoa(pair.host))
		case containerIP != "":
			addr = net.JoinHostPort(containerIP, strconv.Itoa(pair.container))
		default:
			continue
		}
		status.Endpoints = append(status.Endpoints, runtime.Endpoint{Port: pair.container, Addr: addr})
	}
	return status, nil
}

func (r *Runtime) ensureNetwork(ctx context.Context, project string) error {
	name := NetworkName(project)
	_, err, _ := r.networks.Do(name, func() (any, error) {
		if _, err := r.client.NetworkInspect(ctx, name, client.NetworkInspectOptions{}); err == nil {
			return nil, nil
		}
		_, err := r.client.NetworkCreate(ctx, name, client.NetworkCreateOptions{
			Labels: r.labels(project, nil),
		})
		if err != nil {
			if _, ie := r.client.NetworkInspect(ctx, name, client.NetworkInspectOptions{}); ie == nil {
				return nil, nil
			}
			return nil, fmt.Errorf("create network %q: %w", name, err)
		}
		r.logger.Info("created network", zap.String("network", name))
		return nil, nil
	})
	return err
}

// ensureImage pulls ref unless it is present locally. Concurrent calls for
// the same ref share one pull.
func (r *Runtime) ensureImage(ctx context.Context, ref string) error {
	_, err, _ := r.pulls.Do(ref, func() (any, error) {
		_, err := r.client.ImageInspect(ctx, ref)
		if err == nil {
			return nil, nil
		}
		if !errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("inspect image %q: %w", ref, err)
		}

		r.logger.Info("pulling image", zap.String("image", ref))
		resp, err := r.client.ImagePull(ctx, ref, client.ImagePullOptions{})
		if err != nil {
			return nil, fmt.Errorf("pull image %q: %w", ref, err)
		}
		defer resp.Close()
		if err := resp.Wait(ctx); err != nil {
			return nil, fmt.Errorf("pull image %q: %w", ref, err)
		}
		return nil, nil
	})
	return err
}
