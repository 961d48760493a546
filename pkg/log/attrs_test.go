package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/log"
)

type errStub string

func TestRunID(t *testing.T) {
	attr := log.RunID(api.RunID("run-123"))
	assertAttrEqual(t, attr, "run_id", "run-123")
}

func TestTask(t *testing.T) {
	attr := log.Task("add numbers")
	assertAttrEqual(t, attr, "task", "add numbers")
}

func TestAction(t *testing.T) {
	attr := log.Action("vars")
	assertAttrEqual(t, attr, "action", "vars")
}

func TestStatus(t *testing.T) {
	attr := log.Status(api.StatusSkipped)
	assertAttrEqual(t, attr, "status", "skipped")
}

func TestLanguage(t *testing.T) {
	attr := log.Language("lua")
	assertAttrEqual(t, attr, "language", "lua")
}

func TestIteration(t *testing.T) {
	attr := log.Iteration(3)
	assert.Equal(t, "iteration", attr.Key)
	assert.Equal(t, int64(3), attr.Value.Int64())
}

func TestError(t *testing.T) {
	attr := log.Error(nil)
	assertAttrEqual(t, attr, "error", "")

	attr = log.Error(errStub("boom"))
	assertAttrEqual(t, attr, "error", "boom")
}

func TestErrorString(t *testing.T) {
	attr := log.ErrorString("badness")
	assertAttrEqual(t, attr, "error", "badness")
}

func (e errStub) Error() string { return string(e) }

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
