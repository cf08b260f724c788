package parser

import (
	"context"

	"github.com/railwayapp/yardmaster/internal/discovery"
	"github.com/railwayapp/yardmaster/internal/environment"
	"github.com/railwayapp/yardmaster/internal/schema"
)

// Fragment is the result of parsing one document: a draft topology plus the
// problems found while converting it. Problems are not fatal on their own;
// the validator reports them together with any broken invariant.
type Fragment struct {
	Topology *schema.Topology
	Problems []Problem
	Source   string
}

func (f *Fragment) addProblem(service, format string, args ...any) {
	f.Problems = append(f.Problems, newProblem(service, format, args...))
}

// Parser defines the interface for parsing one topology document format
type Parser interface {
	// Parse converts the document content into a fragment. The environment
	// is only used for ${VAR} interpolation; required variables stay
	// unresolved until start.
	Parse(ctx context.Context, config discovery.ConfigFile, content []byte, env environment.Environment) (*Fragment, error)

	// CanParse returns true if this parser can handle the given config type
	CanParse(configType string) bool
}
