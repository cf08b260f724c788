package docker

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/api/types/network"

	"github.com/railwayapp/yardmaster/internal/runtime"
	"github.com/railwayapp/yardmaster/internal/schema"
)

type containerSpec struct {
	config     *container.Config
	hostConfig *container.HostConfig
	networking *network.NetworkingConfig
}

// buildSpec translates an instance into Docker create options.
func (r *Runtime) buildSpec(inst runtime.Instance) (containerSpec, error) {
	svc := inst.Service

	exposed := network.PortSet{}
	bindings := network.PortMap{}
	for _, p := range svc.Ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		port, ok := network.PortFrom(uint16(p.ContainerPort), network.IPProtocol(proto))
		if !ok {
			return containerSpec{}, fmt.Errorf("service %q: invalid port %s", svc.Name, p)
		}
		hostIP := p.HostIP
		if hostIP == "" {
			hostIP = "0.0.0.0"
		}
		addr, err := netip.ParseAddr(hostIP)
		if err != nil {
			return containerSpec{}, fmt.Errorf("service %q has invalid host ip %q: %w", svc.Name, hostIP, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], network.PortBinding{
			HostIP:   addr,
			HostPort: strconv.Itoa(p.HostPort),
		})
	}
	for _, e := range svc.Expose {
		port, ok := network.PortFrom(uint16(e), "tcp")
		if !ok {
			return containerSpec{}, fmt.Errorf("service %q: invalid exposed port %d", svc.Name, e)
		}
		exposed[port] = struct{}{}
	}

	mounts := make([]mount.Mount, 0, len(svc.Mounts))
	for _, m := range svc.Mounts {
		switch m.Kind {
		case schema.MountBind:
			source, err := bindSource(inst.Dir, m.Source)
			if err != nil {
				return containerSpec{}, fmt.Errorf("service %q: %w", svc.Name, err)
			}
			mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: source, Target: m.Target, ReadOnly: m.ReadOnly})
		default:
			mounts = append(mounts, mount.Mount{
				Type:     mount.TypeVolume,
				Source:   VolumeName(inst.Project, m.Source),
				Target:   m.Target,
				ReadOnly: m.ReadOnly,
			})
		}
	}

	restart := container.RestartPolicy{Name: container.RestartPolicyDisabled}
	if svc.Restart == schema.RestartAlways {
		restart = container.RestartPolicy{Name: container.RestartPolicyAlways}
	}

	return containerSpec{
		config: &container.Config{
			Image:        svc.Image,
			Env:          slices.Clone(inst.Env),
			ExposedPorts: exposed,
			Labels: r.labels(inst.Project, map[string]string{
				LabelService:   svc.Name,
				LabelEndpoints: encodeEndpoints(svc),
			}),
		},
		hostConfig: &container.HostConfig{
			Mounts:        mounts,
			PortBindings:  bindings,
			RestartPolicy: restart,
		},
		networking: &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				NetworkName(inst.Project): {Aliases: []string{svc.Name}},
			},
		},
	}, nil
}

func bindSource(dir, source string) (string, error) {
	if rest, ok := strings.CutPrefix(source, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve bind source %q: %w", source, err)
		}
		return filepath.Join(home, rest), nil
	}
	if filepath.IsAbs(source) {
		return source, nil
	}
	abs, err := filepath.Abs(filepath.Join(dir, source))
	if err != nil {
		return "", fmt.Errorf("resolve bind source %q: %w", source, err)
	}
	return abs, nil
}

// encodeEndpoints records which ports to probe as "container:host" pairs.
// A host port of 0 means the port is only reachable on the project network.
func encodeEndpoints(svc schema.Service) string {
	published := make(map[int]int)
	for _, p := range svc.Ports {
		if p.Protocol == "tcp" || p.Protocol == "" {
			if _, ok := published[p.ContainerPort]; !ok {
				published[p.ContainerPort] = p.HostPort
			}
		}
	}
	var pairs []string
	for _, port := range svc.ProbePorts() {
		pairs = append(pairs, fmt.Sprintf("%d:%d", port, published[port]))
	}
	return strings.Join(pairs, ",")
}

type endpointPair struct {
	container int
	host      int
}

func decodeEndpoints(label string) []endpointPair {
	var pairs []endpointPair
	for _, item := range strings.Split(label, ",") {
		c, h, ok := strings.Cut(item, ":")
		if !ok {
			continue
		}
		cp, err1 := strconv.Atoi(c)
		hp, err2 := strconv.Atoi(h)
		if err1 != nil || err2 != nil {
			continue
		}
		pairs = append(pairs, endpointPair{container: cp, host: hp})
	}
	return pairs
}
