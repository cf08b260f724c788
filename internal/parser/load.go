package parser

import (
	"context"
	"fmt"

	"github.com/railwayapp/yardmaster/internal/discovery"
	"github.com/railwayapp/yardmaster/internal/environment"
	"github.com/railwayapp/yardmaster/internal/errkind"
	"github.com/railwayapp/yardmaster/internal/filesystems"
	"github.com/railwayapp/yardmaster/internal/schema"
)

// DefaultParsers returns a parser for every supported document format.
func DefaultParsers() []Parser {
	return []Parser{
		NewComposeParser(),
		NewManifestParser(),
	}
}

// Loader turns a path into a validated topology.
type Loader struct {
	filesystem filesystems.FileSystem
	scanner    *discovery.Scanner
	parsers    []Parser
}

func NewLoader(filesystem filesystems.FileSystem, parsers ...Parser) *Loader {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}
	return &Loader{
		filesystem: filesystem,
		scanner:    discovery.NewScannerWithDetectors(filesystem, discovery.DefaultDetectors()),
		parsers:    parsers,
	}
}

// Load locates, parses and validates the topology at path (a file or a
// directory containing one). The environment only feeds ${VAR}
// interpolation; required variables are checked when services start.
func (l *Loader) Load(ctx context.Context, path string, env environment.Environment) (*schema.Topology, error) {
	config, err := l.scanner.Resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := l.filesystem.ReadFile(config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", config.Path, err)
	}

	var parser Parser
	for _, p := range l.parsers {
		if p.CanParse(config.Type) {
			parser = p
			break
		}
	}
	if parser == nil {
		return nil, fmt.Errorf("no parser for %s (type %s)", config.Path, config.Type)
	}

	fragment, err := parser.Parse(ctx, config, content, env)
	if err != nil {
		// A document the format library rejects outright is still a
		// validation failure from the caller's point of view.
		return nil, &ValidationError{
			Source:   config.Path,
			Problems: []Problem{newProblem("", "%v", err)},
		}
	}
	if err := Validate(fragment); err != nil {
		return nil, err
	}

	fragment.Topology.Dir = l.filesystem.Dir(config.Path)
	return fragment.Topology, nil
}

// Load is a convenience wrapper using the local filesystem.
func Load(ctx context.Context, path string, env environment.Environment) (*schema.Topology, error) {
	return NewLoader(filesystems.NewLocalFS()).Load(ctx, path, env)
}

var _ errkind.Kinded = (*ValidationError)(nil)
