package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/miniscript/pkg/api"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runApp(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := newApp(&out, &errOut).Run(append([]string{"miniscript"}, args...))
	return &out, err
}

func TestRunCommand(t *testing.T) {
	script := writeFile(t, "script.yaml", `
- vars:
    total: "{{ base * 2 }}"
- return: "{{ total + extra }}"
`)
	vars := writeFile(t, "vars.json", `{"base": 20}`)

	out, err := runApp(t, "run", "--vars", vars, "--var", "extra=2", script)
	require.NoError(t, err)

	var res api.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, api.RunReturned, res.Status)
	assert.Equal(t, 42.0, res.Value)
	assert.Equal(t, 40.0, res.Vars["total"])
	assert.NotEmpty(t, res.ID)
}

func TestRunCommandLanguage(t *testing.T) {
	script := writeFile(t, "script.yaml", `- return: "{{ (+ a 1) }}"`)

	out, err := runApp(t, "--language", "ale", "run", "--var", "a=1", script)
	require.NoError(t, err)

	var res api.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 2.0, res.Value)
}

func TestRunCommandFailure(t *testing.T) {
	script := writeFile(t, "script.yaml", `
- vars: {seen: true}
- fail: stop here
`)

	out, err := runApp(t, "run", script)
	assert.ErrorIs(t, err, ErrRunFailed)
	assert.ErrorIs(t, err, api.ErrAborted)

	var res api.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, api.RunFailed, res.Status)
	assert.Equal(t, true, res.Vars["seen"])
}

func TestRunCommandErrors(t *testing.T) {
	script := writeFile(t, "script.yaml", `- return: 1`)

	_, err := runApp(t, "run")
	assert.ErrorIs(t, err, api.ErrInvalidScript)

	_, err = runApp(t, "run", "--var", "novalue", script)
	assert.ErrorIs(t, err, ErrInvalidVar)

	_, err = runApp(t, "--language", "cobol", "run", script)
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	script := writeFile(t, "script.yaml", `
- log: hello
- block:
    - return: 1
`)

	out, err := runApp(t, "check", script)
	require.NoError(t, err)

	var res api.CheckResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 2, res.Tasks)

	bad := writeFile(t, "bad.yaml", `- block: []`)
	_, err = runApp(t, "check", bad)
	assert.ErrorIs(t, err, api.ErrInvalidTask)
}

func TestTasksCommand(t *testing.T) {
	out, err := runApp(t, "tasks")
	require.NoError(t, err)

	var res api.TasksListResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, 2, res.Count)
}

func TestVarValuesKeepCommas(t *testing.T) {
	script := writeFile(t, "script.yaml", `- return: "{{ items }}"`)

	out, err := runApp(t, "run", "--var", "items=[1, 2, 3]", script)
	require.NoError(t, err)

	var res api.RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.Equal(t, []any{1.0, 2.0, 3.0}, res.Value)
}
