package export

import (
	"encoding/json"

	"github.com/railwayapp/yardmaster/internal/graph"
	"github.com/railwayapp/yardmaster/internal/schema"
)

// JSONExporter renders the resolved topology model together with the start
// tiers, so the order up will follow can be checked without starting
// anything.
type JSONExporter struct{}

type jsonDocument struct {
	*schema.Topology
	Tiers [][]string `json:"tiers,omitempty"`
}

func (e *JSONExporter) Name() string {
	return "json"
}

func (e *JSONExporter) Export(topology *schema.Topology) ([]byte, error) {
	doc := jsonDocument{Topology: topology}
	// A cyclic topology still exports; it just has no start order.
	if tiers, err := graph.Tiers(topology); err == nil {
		doc.Tiers = tiers
	}
	return json.MarshalIndent(doc, "", "  ")
}

func NewJSONExporter() Exporter {
	return &JSONExporter{}
}
