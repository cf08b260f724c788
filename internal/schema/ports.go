package schema

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// PortMapping publishes a container port on the host
type PortMapping struct {
	HostIP        string `json:"hostIP,omitempty" yaml:"hostIP,omitempty"`
	HostPort      int    `json:"hostPort" yaml:"hostPort"`
	ContainerPort int    `json:"containerPort" yaml:"containerPort"`
	Protocol      string `json:"protocol" yaml:"protocol"`
}

// Key identifies the host-side binding; two mappings with the same key
// cannot coexist on one host.
func (p PortMapping) Key() string {
	return fmt.Sprintf("%d/%s", p.HostPort, p.Protocol)
}

func (p PortMapping) String() string {
	s := fmt.Sprintf("%d:%d", p.HostPort, p.ContainerPort)
	switch {
	case strings.Contains(p.HostIP, ":"):
		s = "[" + p.HostIP + "]:" + s
	case p.HostIP != "":
		s = p.HostIP + ":" + s
	}
	if p.Protocol != "" && p.Protocol != "tcp" {
		s += "/" + p.Protocol
	}
	return s
}

// ParsePortMapping parses "hostPort:containerPort", optionally prefixed with a
// host IP and suffixed with "/tcp" or "/udp".
func ParsePortMapping(value string) (PortMapping, error) {
	spec, proto, _ := strings.Cut(value, "/")
	if proto == "" {
		proto = "tcp"
	}
	if proto != "tcp" && proto != "udp" {
		return PortMapping{}, fmt.Errorf("port %q: unsupported protocol %q", value, proto)
	}

	// IPv6 host addresses are bracketed, so split on the last two colons.
	idx := strings.LastIndex(spec, ":")
	if idx < 0 {
		return PortMapping{}, fmt.Errorf("port %q: expected hostPort:containerPort", value)
	}
	hostPart, containerPart := spec[:idx], spec[idx+1:]

	var hostIP string
	if i := strings.LastIndex(hostPart, ":"); i >= 0 {
		hostIP = strings.Trim(hostPart[:i], "[]")
		hostPart = hostPart[i+1:]
		if _, err := netip.ParseAddr(hostIP); err != nil {
			return PortMapping{}, fmt.Errorf("port %q: invalid host IP %q", value, hostIP)
		}
	}

	hostPort, err := ParsePort(hostPart)
	if err != nil {
		return PortMapping{}, fmt.Errorf("port %q: host %w", value, err)
	}
	containerPort, err := ParsePort(containerPart)
	if err != nil {
		return PortMapping{}, fmt.Errorf("port %q: container %w", value, err)
	}

	return PortMapping{
		HostIP:        hostIP,
		HostPort:      hostPort,
		ContainerPort: containerPort,
		Protocol:      proto,
	}, nil
}

// ParsePort parses a single port number, accepting an optional "/tcp" suffix.
func ParsePort(value string) (int, error) {
	value = strings.TrimSuffix(strings.TrimSpace(value), "/tcp")
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", value)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range", n)
	}
	return n, nil
}
