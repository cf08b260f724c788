package docker

import (
	"context"
	"fmt"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/client"
	"go.uber.org/zap"
)

// EnsureVolume creates the project's volume unless it already exists.
// Existing volumes and their contents are reused.
func (r *Runtime) EnsureVolume(ctx context.Context, project, volume string) error {
	name := VolumeName(project, volume)

	_, err := r.client.VolumeInspect(ctx, name, client.VolumeInspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect volume %q: %w", name, err)
	}

	_, err = r.client.VolumeCreate(ctx, client.VolumeCreateOptions{
		Name:   name,
		Labels: r.labels(project, map[string]string{LabelVolume: volume}),
	})
	if err != nil {
		// Another process may have created it in the meantime.
		if _, ie := r.client.VolumeInspect(ctx, name, client.VolumeInspectOptions{}); ie == nil {
			return nil
		}
		return fmt.Errorf("create volume %q: %w", name, err)
	}
	r.logger.Info("created volume", zap.String("volume", name))
	return nil
}

func (r *Runtime) RemoveVolume(ctx context.Context, project, volume string) error {
	name := VolumeName(project, volume)
	_, err := r.client.VolumeRemove(ctx, name, client.VolumeRemoveOptions{})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove volume %q: %w", name, err)
	}
	if err == nil {
		r.logger.Info("removed volume", zap.String("volume", name))
	}
	return nil
}
