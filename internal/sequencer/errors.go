package sequencer

import (
	"fmt"
	"strings"
	"time"

	"github.com/railwayapp/yardmaster/internal/errkind"
)

// StartupTimeoutError reports a service whose endpoints never accepted a
// connection. The instance is left running.
type StartupTimeoutError struct {
	Service   string
	Timeout   time.Duration
	Endpoints []string
	Err       error
}

func (e *StartupTimeoutError) Error() string {
	return fmt.Sprintf("service %s: not ready after %s, unreachable endpoints: %s", e.Service, e.Timeout, strings.Join(e.Endpoints, ", "))
}

func (e *StartupTimeoutError) Unwrap() error { return e.Err }

func (e *StartupTimeoutError) Kind() errkind.Kind { return errkind.StartupTimeout }

// RuntimeCrashError reports an instance that exited on its own.
type RuntimeCrashError struct {
	Service  string
	ExitCode int
}

func (e *RuntimeCrashError) Error() string {
	return fmt.Sprintf("service %s: exited unexpectedly with code %d", e.Service, e.ExitCode)
}

func (e *RuntimeCrashError) Kind() errkind.Kind { return errkind.RuntimeCrash }
