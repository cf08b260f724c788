package discovery

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/railwayapp/yardmaster/internal/discovery/detectors"
	"github.com/railwayapp/yardmaster/internal/filesystems"
)

const (
	TypeCompose      = "compose"
	TypeManifestYAML = "manifest-yaml"
	TypeManifestTOML = "manifest-toml"
)

// ErrNoTopology is returned when a directory holds no recognizable topology file.
var ErrNoTopology = errors.New("no topology file found")

// ConfigFile represents a discovered topology document
type ConfigFile struct {
	Path string
	Type string // detector name like "compose" or "manifest-toml"
}

// Detector defines the interface for format-specific topology file detection
type Detector interface {
	Name() string
	Detect(filename string) bool
}

// Scanner finds topology files using registered detectors. Detectors are
// consulted in registration order, which also sets precedence when a
// directory contains more than one candidate.
type Scanner struct {
	filesystem filesystems.FileSystem
	detectors  []Detector
}

func NewScanner(filesystem filesystems.FileSystem) *Scanner {
	return &Scanner{filesystem: filesystem, detectors: make([]Detector, 0)}
}

func (s *Scanner) RegisterDetector(detector Detector) {
	s.detectors = append(s.detectors, detector)
}

// DefaultDetectors returns the detectors for every format the parser understands.
func DefaultDetectors() []Detector {
	return []Detector{
		&detectors.DockerCompose{},
		&detectors.Manifest{Format: "yaml"},
		&detectors.Manifest{Format: "toml"},
	}
}

// NewScannerWithDetectors creates a scanner with the provided detectors
func NewScannerWithDetectors(filesystem filesystems.FileSystem, detectors []Detector) *Scanner {
	scanner := NewScanner(filesystem)
	for _, detector := range detectors {
		scanner.RegisterDetector(detector)
	}
	return scanner
}

// DiscoverConfigs lists every topology file directly inside dir, ordered by
// detector precedence.
func (s *Scanner) DiscoverConfigs(dir string) ([]ConfigFile, error) {
	matches := make([][]ConfigFile, len(s.detectors))

	for entry, err := range s.filesystem.ReadDir(dir) {
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", dir, err)
		}
		if entry.IsDir() {
			continue
		}
		for i, detector := range s.detectors {
			if detector.Detect(entry.Name()) {
				matches[i] = append(matches[i], ConfigFile{
					Path: s.filesystem.Join(dir, entry.Name()),
					Type: detector.Name(),
				})
				break // first match wins
			}
		}
	}

	var configs []ConfigFile
	for _, m := range matches {
		configs = append(configs, m...)
	}
	return configs, nil
}

// Find returns the highest-precedence topology file in dir.
func (s *Scanner) Find(dir string) (ConfigFile, error) {
	configs, err := s.DiscoverConfigs(dir)
	if err != nil {
		return ConfigFile{}, err
	}
	if len(configs) == 0 {
		return ConfigFile{}, fmt.Errorf("%s: %w", dir, ErrNoTopology)
	}
	return configs[0], nil
}

// Resolve turns a user-supplied path into a ConfigFile. Directories are
// searched with Find; explicit files are typed by name, then by extension.
func (s *Scanner) Resolve(path string) (ConfigFile, error) {
	if path == "" {
		path = "."
	}

	if s.filesystem.IsDir(path) {
		return s.Find(path)
	}

	name := s.filesystem.Base(path)
	for _, detector := range s.detectors {
		if detector.Detect(name) {
			return ConfigFile{Path: path, Type: detector.Name()}, nil
		}
	}
	if strings.EqualFold(filepath.Ext(name), ".toml") {
		return ConfigFile{Path: path, Type: TypeManifestTOML}, nil
	}
	return ConfigFile{Path: path, Type: TypeCompose}, nil
}
