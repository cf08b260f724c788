package export

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/railwayapp/yardmaster/internal/schema"
)

const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// manifest mirrors the native yardmaster.yaml / yardmaster.toml layout.
type manifest struct {
	Name     string                     `yaml:"name" toml:"name"`
	Services map[string]manifestService `yaml:"services" toml:"services"`
	Volumes  map[string]map[string]any  `yaml:"volumes,omitempty" toml:"volumes,omitempty"`
}

type manifestService struct {
	Image       string   `yaml:"image" toml:"image"`
	Environment []string `yaml:"environment,omitempty" toml:"environment,omitempty"`
	Expose      []int    `yaml:"expose,omitempty" toml:"expose,omitempty"`
	Ports       []string `yaml:"ports,omitempty" toml:"ports,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty" toml:"depends_on,omitempty"`
	Volumes     []string `yaml:"volumes,omitempty" toml:"volumes,omitempty"`
	Restart     string   `yaml:"restart,omitempty" toml:"restart,omitempty"`
}

// ManifestExporter writes a topology back out as a native manifest, which
// turns a compose file into an equivalent yardmaster.yaml or
// yardmaster.toml.
type ManifestExporter struct {
	format string
}

func NewManifestExporter(format string) Exporter {
	return &ManifestExporter{format: format}
}

func (e *ManifestExporter) Name() string {
	return e.format
}

func (e *ManifestExporter) Export(topology *schema.Topology) ([]byte, error) {
	doc := toManifest(topology)

	var buf bytes.Buffer
	switch e.format {
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
			return nil, fmt.Errorf("encode toml: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format %q", e.format)
	}
	return buf.Bytes(), nil
}

func toManifest(topology *schema.Topology) manifest {
	doc := manifest{
		Name:     topology.Name,
		Services: make(map[string]manifestService, len(topology.Services)),
	}
	if len(topology.Volumes) > 0 {
		doc.Volumes = make(map[string]map[string]any, len(topology.Volumes))
		for _, v := range topology.Volumes {
			doc.Volumes[v.Name] = map[string]any{}
		}
	}

	for _, svc := range topology.Services {
		ms := manifestService{
			Image:     svc.Image,
			Expose:    slices.Clone(svc.Expose),
			DependsOn: slices.Clone(svc.Dependencies),
		}
		ms.Environment = append(ms.Environment, svc.Environment.Required...)
		for _, k := range slices.Sorted(maps.Keys(svc.Environment.Literals)) {
			ms.Environment = append(ms.Environment, k+"="+svc.Environment.Literals[k])
		}
		for _, p := range svc.Ports {
			ms.Ports = append(ms.Ports, p.String())
		}
		for _, m := range svc.Mounts {
			ms.Volumes = append(ms.Volumes, m.String())
		}
		if svc.Restart != schema.RestartNone {
			ms.Restart = string(svc.Restart)
		}
		doc.Services[svc.Name] = ms
	}
	return doc
}

