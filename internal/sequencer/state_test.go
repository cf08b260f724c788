package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/railwayapp/yardmaster/internal/schema"
)

func TestInstanceTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    State
		to      State
		restart schema.RestartPolicy
		ok      bool
	}{
		{Pending, Starting, schema.RestartNone, true},
		{Pending, Ready, schema.RestartNone, false},
		{Pending, Running, schema.RestartNone, false},
		{Starting, Ready, schema.RestartNone, true},
		{Starting, Crashed, schema.RestartNone, true},
		{Starting, Running, schema.RestartNone, false},
		{Ready, Running, schema.RestartNone, true},
		{Ready, Crashed, schema.RestartNone, true},
		{Running, Crashed, schema.RestartNone, true},
		{Running, Starting, schema.RestartAlways, false},
		{Crashed, Starting, schema.RestartAlways, true},
		{Crashed, Starting, schema.RestartNone, false},
		{Crashed, Running, schema.RestartAlways, false},
		{Crashed, Stopped, schema.RestartNone, true},
		{Stopped, Starting, schema.RestartNone, true},
		{Stopped, Stopped, schema.RestartNone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to)+"/"+string(tt.restart), func(t *testing.T) {
			svc := schema.NewService("mongo")
			svc.Restart = tt.restart
			inst := &instance{service: svc, state: tt.from}

			err := inst.transition(tt.to)
			if tt.ok {
				assert.NoError(t, err)
				assert.Equal(t, tt.to, inst.state)
				return
			}
			assert.ErrorIs(t, err, ErrIllegalTransition)
			assert.Equal(t, tt.from, inst.state)
		})
	}
}

func TestStateUp(t *testing.T) {
	t.Parallel()

	assert.True(t, Ready.Up())
	assert.True(t, Running.Up())
	for _, s := range []State{Pending, Starting, Crashed, Stopped} {
		assert.False(t, s.Up(), s)
	}
}
