package schema

import (
	"fmt"
	"strings"
)

type MountKind string

const (
	MountVolume MountKind = "volume"
	MountBind   MountKind = "bind"
)

// Mount attaches a named volume or a host path inside a container
type Mount struct {
	Source   string    `json:"source" yaml:"source"`
	Target   string    `json:"target" yaml:"target"`
	ReadOnly bool      `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
	Kind     MountKind `json:"kind" yaml:"kind"`
}

func (m Mount) String() string {
	s := m.Source + ":" + m.Target
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// ParseMount parses "source:target[:ro|:rw]". Sources that look like paths
// are bind mounts; anything else names a volume.
func ParseMount(value string) (Mount, error) {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Mount{}, fmt.Errorf("mount %q: expected source:target[:ro]", value)
	}
	m := Mount{Source: parts[0], Target: parts[1], Kind: MountVolume}
	if m.Source == "" || m.Target == "" {
		return Mount{}, fmt.Errorf("mount %q: source and target are required", value)
	}
	if !strings.HasPrefix(m.Target, "/") {
		return Mount{}, fmt.Errorf("mount %q: target must be an absolute path", value)
	}
	if len(parts) == 3 {
		switch parts[2] {
		case "ro":
			m.ReadOnly = true
		case "rw":
		default:
			return Mount{}, fmt.Errorf("mount %q: unknown mode %q", value, parts[2])
		}
	}
	if IsBindSource(m.Source) {
		m.Kind = MountBind
	}
	return m, nil
}

func IsBindSource(source string) bool {
	return strings.HasPrefix(source, ".") || strings.HasPrefix(source, "/") || strings.HasPrefix(source, "~")
}
