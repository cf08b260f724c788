package docker

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/netip"
	"strings"
	"sync"

	"github.com/containerd/errdefs"
	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/jsonstream"
	"github.com/moby/moby/api/types/network"
	"github.com/moby/moby/api/types/volume"
	"github.com/moby/moby/client"
)

// fakeClient keeps just enough daemon state to drive the runtime.
type fakeClient struct {
	apiClient

	mu         sync.Mutex
	images     map[string]bool
	pulls      map[string]int
	volumes    map[string]map[string]string
	networks   map[string]bool
	containers map[string]*container.InspectResponse
	ids        map[string]string
	creates    int
	nextIP     int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		images:     make(map[string]bool),
		pulls:      make(map[string]int),
		volumes:    make(map[string]map[string]string),
		networks:   make(map[string]bool),
		containers: make(map[string]*container.InspectResponse),
		ids:        make(map[string]string),
		nextIP:     2,
	}
}

func notFound(kind, name string) error {
	return fmt.Errorf("no such %s: %s: %w", kind, name, errdefs.ErrNotFound)
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) ImageInspect(ctx context.Context, ref string, _ ...client.ImageInspectOption) (client.ImageInspectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.images[ref] {
		return client.ImageInspectResult{}, notFound("image", ref)
	}
	return client.ImageInspectResult{}, nil
}

type pullResponse struct {
	io.Reader
	done func()
}

func (p *pullResponse) Close() error { return nil }

func (p *pullResponse) JSONMessages(ctx context.Context) iter.Seq2[jsonstream.Message, error] {
	return func(yield func(jsonstream.Message, error) bool) {}
}

func (p *pullResponse) Wait(ctx context.Context) error {
	p.done()
	return nil
}

func (f *fakeClient) ImagePull(ctx context.Context, ref string, _ client.ImagePullOptions) (client.ImagePullResponse, error) {
	f.mu.Lock()
	f.pulls[ref]++
	f.mu.Unlock()
	return &pullResponse{Reader: strings.NewReader(""), done: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.images[ref] = true
	}}, nil
}

func (f *fakeClient) NetworkInspect(ctx context.Context, name string, _ client.NetworkInspectOptions) (client.NetworkInspectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.networks[name] {
		return client.NetworkInspectResult{}, notFound("network", name)
	}
	return client.NetworkInspectResult{}, nil
}

func (f *fakeClient) NetworkCreate(ctx context.Context, name string, _ client.NetworkCreateOptions) (client.NetworkCreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks[name] = true
	return client.NetworkCreateResult{ID: name}, nil
}

func (f *fakeClient) VolumeInspect(ctx context.Context, name string, _ client.VolumeInspectOptions) (client.VolumeInspectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	labels, ok := f.volumes[name]
	if !ok {
		return client.VolumeInspectResult{}, notFound("volume", name)
	}
	return client.VolumeInspectResult{Volume: volume.Volume{Name: name, Labels: labels}}, nil
}

func (f *fakeClient) VolumeCreate(ctx context.Context, opts client.VolumeCreateOptions) (client.VolumeCreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes[opts.Name] = opts.Labels
	return client.VolumeCreateResult{Volume: volume.Volume{Name: opts.Name, Labels: opts.Labels}}, nil
}

func (f *fakeClient) VolumeRemove(ctx context.Context, name string, _ client.VolumeRemoveOptions) (client.VolumeRemoveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.volumes[name]; !ok {
		return client.VolumeRemoveResult{}, notFound("volume", name)
	}
	delete(f.volumes, name)
	return client.VolumeRemoveResult{}, nil
}

func (f *fakeClient) lookup(ref string) (*container.InspectResponse, bool) {
	if name, ok := f.ids[ref]; ok {
		ref = name
	}
	c, ok := f.containers[ref]
	return c, ok
}

func (f *fakeClient) ContainerInspect(ctx context.Context, ref string, _ client.ContainerInspectOptions) (client.ContainerInspectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.lookup(ref)
	if !ok {
		return client.ContainerInspectResult{}, notFound("container", ref)
	}
	return client.ContainerInspectResult{Container: *c}, nil
}

func (f *fakeClient) ContainerCreate(ctx context.Context, opts client.ContainerCreateOptions) (client.ContainerCreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if opts.Config == nil || opts.Config.Image == "" {
		return client.ContainerCreateResult{}, errdefs.ErrInvalidArgument
	}
	if !f.images[opts.Config.Image] {
		return client.ContainerCreateResult{}, notFound("image", opts.Config.Image)
	}
	f.creates++
	id := fmt.Sprintf("id-%d", f.creates)
	f.ids[id] = opts.Name
	f.containers[opts.Name] = &container.InspectResponse{
		ID:         id,
		Name:       "/" + opts.Name,
		Config:     opts.Config,
		HostConfig: opts.HostConfig,
		State:      &container.State{Status: "created"},
	}
	return client.ContainerCreateResult{ID: id}, nil
}

func (f *fakeClient) ContainerStart(ctx context.Context, ref string, _ client.ContainerStartOptions) (client.ContainerStartResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.lookup(ref)
	if !ok {
		return client.ContainerStartResult{}, notFound("container", ref)
	}
	c.State = &container.State{Status: "running", Running: true}
	ip := netip.AddrFrom4([4]byte{172, 18, 0, byte(f.nextIP)})
	f.nextIP++
	c.NetworkSettings = &container.NetworkSettings{Networks: map[string]*network.EndpointSettings{}}
	for name := range f.networks {
		c.NetworkSettings.Networks[name] = &network.EndpointSettings{IPAddress: ip}
	}
	return client.ContainerStartResult{}, nil
}

func (f *fakeClient) ContainerStop(ctx context.Context, ref string, _ client.ContainerStopOptions) (client.ContainerStopResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.lookup(ref)
	if !ok {
		return client.ContainerStopResult{}, notFound("container", ref)
	}
	c.State = &container.State{Status: "exited"}
	return client.ContainerStopResult{}, nil
}

func (f *fakeClient) ContainerRemove(ctx context.Context, ref string, _ client.ContainerRemoveOptions) (client.ContainerRemoveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.lookup(ref)
	if !ok {
		return client.ContainerRemoveResult{}, notFound("container", ref)
	}
	delete(f.containers, strings.TrimPrefix(c.Name, "/"))
	delete(f.ids, c.ID)
	return client.ContainerRemoveResult{}, nil
}

// exit marks a running container as exited with code.
func (f *fakeClient) exit(name string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[name]; ok {
		c.State = &container.State{Status: "exited", ExitCode: code}
	}
}

func (f *fakeClient) ContainerWait(ctx context.Context, ref string, _ client.ContainerWaitOptions) client.ContainerWaitResult {
	results := make(chan container.WaitResponse, 1)
	errs := make(chan error, 1)

	f.mu.Lock()
	c, ok := f.lookup(ref)
	f.mu.Unlock()
	if !ok {
		errs <- notFound("container", ref)
		return client.ContainerWaitResult{Result: results, Error: errs}
	}
	results <- container.WaitResponse{StatusCode: int64(c.State.ExitCode)}
	return client.ContainerWaitResult{Result: results, Error: errs}
}
