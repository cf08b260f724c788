// Package errkind classifies orchestration failures so callers can react to
// the kind of failure without matching on messages.
package errkind

import "errors"

type Kind int

const (
	Unknown Kind = iota
	Validation
	MissingEnvironment
	CyclicDependency
	StartupTimeout
	RuntimeCrash
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "ValidationError"
	case MissingEnvironment:
		return "MissingEnvironment"
	case CyclicDependency:
		return "CyclicDependency"
	case StartupTimeout:
		return "StartupTimeout"
	case RuntimeCrash:
		return "RuntimeCrash"
	default:
		return "Unknown"
	}
}

// Kinded is implemented by every typed orchestration error.
type Kinded interface {
	error
	Kind() Kind
}

// Of returns the kind of the first typed error found in err's tree, including
// errors combined with errors.Join.
func Of(err error) Kind {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Unknown
}

// ExitCode maps a failure to the process exit code used by the CLI.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch Of(err) {
	case Validation:
		return 2
	case MissingEnvironment:
		return 3
	case CyclicDependency:
		return 4
	case StartupTimeout:
		return 5
	case RuntimeCrash:
		return 6
	default:
		return 1
	}
}
