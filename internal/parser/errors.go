package parser

import (
	"fmt"
	"strings"

	"github.com/railwayapp/yardmaster/internal/errkind"
)

// Problem is one broken invariant or malformed entry.
type Problem struct {
	Service string // empty for topology-level problems
	Message string
}

func newProblem(service, format string, args ...any) Problem {
	return Problem{Service: service, Message: fmt.Sprintf(format, args...)}
}

func (p Problem) String() string {
	if p.Service == "" {
		return p.Message
	}
	return "service " + p.Service + ": " + p.Message
}

// ValidationError enumerates every problem found in a topology document.
type ValidationError struct {
	Source   string
	Problems []Problem
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, "  - "+p.String())
	}
	return fmt.Sprintf("invalid topology %s (%d problems):\n%s", e.Source, len(e.Problems), strings.Join(lines, "\n"))
}

func (e *ValidationError) Kind() errkind.Kind { return errkind.Validation }
