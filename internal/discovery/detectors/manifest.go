package detectors

import "strings"

// Manifest detects native yardmaster topology files in either YAML or TOML.
type Manifest struct {
	Format string // "yaml" or "toml"
}

func (m *Manifest) Name() string { return "manifest-" + m.Format }

func (m *Manifest) Detect(filename string) bool {
	filename = strings.ToLower(filename)
	switch m.Format {
	case "toml":
		return filename == "yardmaster.toml"
	default:
		return filename == "yardmaster.yaml" || filename == "yardmaster.yml"
	}
}
