package sequencer

import (
	"context"
	"errors"
	"fmt"

	"github.com/railwayapp/yardmaster/internal/runtime"
	"github.com/railwayapp/yardmaster/internal/schema"
)

type ServiceStatus struct {
	Service   string             `json:"service"`
	State     State              `json:"state"`
	ExitCode  int                `json:"exitCode,omitempty"`
	Endpoints []runtime.Endpoint `json:"endpoints,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Status reports every service of topology in topology order. Services this
// sequencer tracks report their state machine state, corrected to Crashed
// when the runtime no longer runs an instance that was up or still starting. Untracked
// services are derived from the runtime alone, so a fresh process sees
// what an earlier one left behind.
func (s *Sequencer) Status(ctx context.Context, topology *schema.Topology) ([]ServiceStatus, error) {
	var (
		out  []ServiceStatus
		errs []error
	)
	for _, svc := range topology.Services {
		rs, err := s.runtime.Inspect(ctx, topology.Name, svc.Name)
		if err != nil {
			errs = append(errs, fmt.Errorf("service %s: inspect: %w", svc.Name, err))
			continue
		}
		st := ServiceStatus{Service: svc.Name, ExitCode: rs.ExitCode, Endpoints: rs.Endpoints}

		s.mu.Lock()
		inst, tracked := s.instances[svc.Name]
		if tracked && s.project == topology.Name {
			st.State = inst.state
			if inst.err != nil {
				st.Error = inst.err.Error()
			}
		} else {
			tracked = false
		}
		s.mu.Unlock()

		switch {
		case !tracked:
			st.State = observedState(rs)
		case st.State.Up() && !rs.Running:
			st.State = Crashed
		case st.State == Starting && rs.Exists && !rs.Running:
			// Left starting after a readiness timeout, then exited.
			st.State = Crashed
		}
		out = append(out, st)
	}
	return out, errors.Join(errs...)
}

func observedState(rs runtime.Status) State {
	switch {
	case !rs.Exists:
		return Pending
	case rs.Running:
		return Running
	case rs.ExitCode != 0:
		return Crashed
	default:
		return Stopped
	}
}
