package sequencer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/railwayapp/yardmaster/internal/schema"
)

type State string

const (
	Pending  State = "pending"
	Starting State = "starting"
	Ready    State = "ready"
	Running  State = "running"
	Crashed  State = "crashed"
	Stopped  State = "stopped"
)

var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[State][]State{
	Pending:  {Starting, Stopped},
	Starting: {Ready, Crashed, Stopped},
	Ready:    {Running, Crashed, Stopped},
	Running:  {Crashed, Stopped},
	Crashed:  {Starting, Stopped},
	Stopped:  {Starting},
}

// Up reports whether an instance in this state has passed readiness.
func (s State) Up() bool {
	return s == Ready || s == Running
}

// instance tracks one service through the state machine.
type instance struct {
	service schema.Service
	state   State
	err     error
}

func newInstance(service schema.Service) *instance {
	return &instance{service: service, state: Pending}
}

// transition moves the instance to next. Crashed may only go back to
// Starting under the always policy; an operator has to stop it otherwise.
func (i *instance) transition(next State) error {
	if !slices.Contains(transitions[i.state], next) {
		return fmt.Errorf("%w: service %s: %s -> %s", ErrIllegalTransition, i.service.Name, i.state, next)
	}
	if i.state == Crashed && next == Starting && i.service.Restart != schema.RestartAlways {
		return fmt.Errorf("%w: service %s: restart policy %s does not restart crashed instances", ErrIllegalTransition, i.service.Name, i.service.Restart)
	}
	i.state = next
	return nil
}
