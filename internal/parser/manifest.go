package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/railwayapp/yardmaster/internal/discovery"
	"github.com/railwayapp/yardmaster/internal/environment"
	"github.com/railwayapp/yardmaster/internal/schema"
)

const defaultProjectName = "yardmaster"

// manifestDocument is the native topology format. Its fields use the same
// string syntax as compose short forms: "hostPort:containerPort" ports and
// "source:target[:ro]" mounts.
type manifestDocument struct {
	Name     string                     `yaml:"name" toml:"name"`
	Services map[string]manifestService `yaml:"services" toml:"services"`
	Volumes  map[string]map[string]any  `yaml:"volumes" toml:"volumes"`
}

type manifestService struct {
	Image       string   `yaml:"image" toml:"image"`
	Environment []string `yaml:"environment" toml:"environment"`
	Expose      []any    `yaml:"expose" toml:"expose"`
	Ports       []string `yaml:"ports" toml:"ports"`
	Links       []string `yaml:"links" toml:"links"`
	DependsOn   []string `yaml:"depends_on" toml:"depends_on"`
	Volumes     []string `yaml:"volumes" toml:"volumes"`
	Restart     string   `yaml:"restart" toml:"restart"`
}

// ManifestParser reads native yardmaster.yaml and yardmaster.toml documents.
type ManifestParser struct{}

func NewManifestParser() *ManifestParser {
	return &ManifestParser{}
}

func (p *ManifestParser) CanParse(configType string) bool {
	return configType == discovery.TypeManifestYAML || configType == discovery.TypeManifestTOML
}

func (p *ManifestParser) Parse(ctx context.Context, config discovery.ConfigFile, content []byte, env environment.Environment) (*Fragment, error) {
	var doc manifestDocument
	switch config.Type {
	case discovery.TypeManifestTOML:
		md, err := toml.Decode(string(content), &doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", config.Path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("failed to decode %s: unknown keys %s", config.Path, strings.Join(keys, ", "))
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", config.Path, err)
		}
	}

	name := doc.Name
	if name == "" {
		name = filepath.Base(filepath.Dir(absOrSelf(config.Path)))
	}
	fragment := &Fragment{
		Topology: schema.NewTopology(strings.ToLower(name)),
		Source:   config.Path,
	}

	for volume := range doc.Volumes {
		fragment.Topology.AddVolume(volume)
	}
	for serviceName, ms := range doc.Services {
		fragment.Topology.AddService(p.convertService(fragment, serviceName, ms))
	}
	fragment.Topology.Sort()

	return fragment, nil
}

func (p *ManifestParser) convertService(fragment *Fragment, name string, ms manifestService) schema.Service {
	service := schema.NewService(name)
	service.Image = ms.Image

	for _, entry := range ms.Environment {
		key, value, hasValue := strings.Cut(entry, "=")
		if key == "" {
			fragment.addProblem(name, "environment entry %q has no name", entry)
			continue
		}
		if hasValue {
			service.Environment.Literals[key] = value
			continue
		}
		service.Environment.Required = append(service.Environment.Required, key)
	}
	slices.Sort(service.Environment.Required)

	for _, raw := range ms.Expose {
		port, err := schema.ParsePort(fmt.Sprint(raw))
		if err != nil {
			fragment.addProblem(name, "expose: %v", err)
			continue
		}
		service.Expose = append(service.Expose, port)
	}

	for _, raw := range ms.Ports {
		mapping, err := schema.ParsePortMapping(raw)
		if err != nil {
			fragment.addProblem(name, "%v", err)
			continue
		}
		service.Ports = append(service.Ports, mapping)
	}

	for _, raw := range ms.Volumes {
		mount, err := schema.ParseMount(raw)
		if err != nil {
			fragment.addProblem(name, "%v", err)
			continue
		}
		service.Mounts = append(service.Mounts, mount)
	}

	deps := make(map[string]bool)
	for _, link := range ms.Links {
		target, _, _ := strings.Cut(link, ":")
		deps[target] = true
	}
	for _, dep := range ms.DependsOn {
		deps[dep] = true
	}
	for dep := range deps {
		service.Dependencies = append(service.Dependencies, dep)
	}
	slices.Sort(service.Dependencies)

	policy, ok := schema.ParseRestartPolicy(ms.Restart)
	if !ok {
		fragment.addProblem(name, "unknown restart policy %q", ms.Restart)
	}
	service.Restart = policy

	return service
}
