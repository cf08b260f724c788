package schema

import (
	"sort"
	"strings"
)

// Topology represents a complete deployment specification
type Topology struct {
	Name     string    `json:"name" yaml:"name"`
	Services []Service `json:"services" yaml:"services"`
	Volumes  []Volume  `json:"volumes,omitempty" yaml:"volumes,omitempty"`

	// Dir is the directory holding the source document; relative bind
	// mount sources resolve against it.
	Dir string `json:"-" yaml:"-"`
}

// Service represents one runnable unit of the topology
type Service struct {
	Name         string        `json:"name" yaml:"name"`
	Image        string        `json:"image" yaml:"image"`
	Environment  Environment   `json:"environment,omitzero" yaml:"environment,omitempty"`
	Expose       []int         `json:"expose,omitempty" yaml:"expose,omitempty"`
	Ports        []PortMapping `json:"ports,omitempty" yaml:"ports,omitempty"`
	Mounts       []Mount       `json:"mounts,omitempty" yaml:"mounts,omitempty"`
	Dependencies []string      `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Restart      RestartPolicy `json:"restart" yaml:"restart"`
}

// Environment holds variables a service needs. Required names are resolved
// from the caller-supplied environment at start time; Literals carry values
// fixed by the document itself.
type Environment struct {
	Required []string          `json:"required,omitempty" yaml:"required,omitempty"`
	Literals map[string]string `json:"literals,omitempty" yaml:"literals,omitempty"`
}

// Volume is a named durable storage location
type Volume struct {
	Name string `json:"name" yaml:"name"`
}

type RestartPolicy string

const (
	RestartNone   RestartPolicy = "none"
	RestartAlways RestartPolicy = "always"
)

// Constructors

func NewTopology(name string) *Topology {
	return &Topology{
		Name:     name,
		Services: make([]Service, 0),
		Volumes:  make([]Volume, 0),
	}
}

func (t *Topology) AddService(service Service) {
	t.Services = append(t.Services, service)
}

func (t *Topology) AddVolume(name string) {
	t.Volumes = append(t.Volumes, Volume{Name: name})
}

// Sort orders services and volumes by name so output and iteration are stable.
func (t *Topology) Sort() {
	sort.Slice(t.Services, func(i, j int) bool { return t.Services[i].Name < t.Services[j].Name })
	sort.Slice(t.Volumes, func(i, j int) bool { return t.Volumes[i].Name < t.Volumes[j].Name })
}

// Service returns the named service definition.
func (t *Topology) Service(name string) (Service, bool) {
	for _, s := range t.Services {
		if s.Name == name {
			return s, true
		}
	}
	return Service{}, false
}

func (t *Topology) HasVolume(name string) bool {
	for _, v := range t.Volumes {
		if v.Name == name {
			return true
		}
	}
	return false
}

func NewService(name string) Service {
	return Service{
		Name: name,
		Environment: Environment{
			Literals: make(map[string]string),
		},
		Restart: RestartNone,
	}
}

// ProbePorts lists the container ports a readiness check should reach:
// every published port plus every exposed-only port, without duplicates.
func (s Service) ProbePorts() []int {
	seen := make(map[int]bool)
	var ports []int
	for _, p := range s.Ports {
		if p.Protocol != "" && p.Protocol != "tcp" {
			continue
		}
		if !seen[p.ContainerPort] {
			seen[p.ContainerPort] = true
			ports = append(ports, p.ContainerPort)
		}
	}
	for _, p := range s.Expose {
		if !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}
	return ports
}

// ParseRestartPolicy maps compose and manifest restart values onto the two
// policies the sequencer understands.
func ParseRestartPolicy(value string) (RestartPolicy, bool) {
	switch value {
	case "", "no", "none", "on-failure":
		return RestartNone, true
	case "always", "unless-stopped":
		return RestartAlways, true
	default:
		if strings.HasPrefix(value, "on-failure:") {
			return RestartNone, true
		}
		return RestartNone, false
	}
}
