package errkind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type kindedErr struct{ kind Kind }

func (e kindedErr) Error() string { return e.kind.String() }
func (e kindedErr) Kind() Kind    { return e.kind }

func TestOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"plain", errors.New("boom"), Unknown},
		{"direct", kindedErr{CyclicDependency}, CyclicDependency},
		{"wrapped", fmt.Errorf("start: %w", kindedErr{StartupTimeout}), StartupTimeout},
		{"joined", errors.Join(errors.New("other"), kindedErr{MissingEnvironment}), MissingEnvironment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Of(tt.err))
		})
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 2, ExitCode(kindedErr{Validation}))
	assert.Equal(t, 3, ExitCode(kindedErr{MissingEnvironment}))
	assert.Equal(t, 4, ExitCode(kindedErr{CyclicDependency}))
	assert.Equal(t, 5, ExitCode(kindedErr{StartupTimeout}))
	assert.Equal(t, 6, ExitCode(kindedErr{RuntimeCrash}))
}
