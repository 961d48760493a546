package assert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/miniscript/internal/config"
	"github.com/kode4food/miniscript/pkg/api"
)

// Wrapper wraps testify assertions with miniscript-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *require.Assertions
}

// New creates a new test assertion wrapper with both assert and require
// from testify plus miniscript-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    require.New(t),
	}
}

// ConfigValid asserts that a configuration passes validation
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
}

// ConfigInvalid asserts that a configuration fails validation with an
// error message containing the expected text
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	if w.Error(err) {
		w.Contains(err.Error(), contains)
	}
}

// RunCompleted asserts that a run finished normally without a value
func (w *Wrapper) RunCompleted(res *api.RunResult, err error) {
	w.Helper()
	w.Require.NoError(err)
	w.Require.NotNil(res)
	w.Equal(api.RunCompleted, res.Status)
	w.Nil(res.Value)
}

// RunReturned asserts that a run ended through return with the expected
// value
func (w *Wrapper) RunReturned(res *api.RunResult, err error, expected any) {
	w.Helper()
	w.Require.NoError(err)
	w.Require.NotNil(res)
	w.Equal(api.RunReturned, res.Status)
	w.Equal(expected, res.Value)
}

// RunFailed asserts that a run failed at runtime with an error of the
// expected kind, and that the partial result is still available
func (w *Wrapper) RunFailed(res *api.RunResult, err error, target error) {
	w.Helper()
	w.Require.Error(err)
	w.ErrorIs(err, target)
	w.Require.NotNil(res)
	w.Equal(api.RunFailed, res.Status)
}

// Rejected asserts that a script was refused before anything ran
func (w *Wrapper) Rejected(res *api.RunResult, err error, target error) {
	w.Helper()
	w.Require.Error(err)
	w.ErrorIs(err, target)
	w.Nil(res)
}
