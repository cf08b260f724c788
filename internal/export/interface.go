package export

import (
	"fmt"
	"slices"

	"github.com/railwayapp/yardmaster/internal/schema"
)

// Exporter defines the interface for rendering a topology in some format
type Exporter interface {
	// Export converts a topology to the target format
	Export(topology *schema.Topology) ([]byte, error)

	// Name returns the exporter name (e.g., "json", "yaml", "toml")
	Name() string
}

// Exporters returns every available exporter.
func Exporters() []Exporter {
	return []Exporter{
		NewJSONExporter(),
		NewManifestExporter(FormatYAML),
		NewManifestExporter(FormatTOML),
	}
}

// ForFormat returns the exporter registered under name.
func ForFormat(name string) (Exporter, error) {
	var names []string
	for _, e := range Exporters() {
		if e.Name() == name {
			return e, nil
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return nil, fmt.Errorf("unknown output format %q (want one of %v)", name, names)
}
