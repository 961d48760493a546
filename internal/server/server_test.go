package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/miniscript/internal/assert/helpers"
	"github.com/kode4food/miniscript/internal/events"
	"github.com/kode4food/miniscript/internal/metrics"
	"github.com/kode4food/miniscript/internal/server"
	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/template"
)

type testServerEnv struct {
	*helpers.TestEngineEnv
	Server *server.Server
	Hub    *events.Hub
}

func testServer(t *testing.T) *testServerEnv {
	t.Helper()
	env := helpers.NewTestEngine(t)
	hub := events.NewHub()
	t.Cleanup(hub.Close)

	srv, err := server.NewServer(env.Config, env.Tasks, hub, metrics.New(env.Tasks.Names()...))
	require.NoError(t, err)
	return &testServerEnv{
		TestEngineEnv: env,
		Server:        srv,
		Hub:           hub,
	}
}

func (e *testServerEnv) do(
	t *testing.T, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	switch b := body.(type) {
	case nil:
	case string:
		data = []byte(b)
	default:
		var err error
		data, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.Server.SetupRoutes().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) *T {
	t.Helper()
	var res T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return &res
}

func TestHealthEndpoint(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	res := decode[api.HealthResponse](t, w)
	assert.Equal(t, "miniscript", res.Service)
	assert.Equal(t, "healthy", res.Status)
}

func TestListTasks(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/engine/task", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	res := decode[api.TasksListResponse](t, w)
	assert.Equal(t, len(env.Tasks.Names()), res.Count)

	var names []string
	for _, info := range res.Tasks {
		names = append(names, info.Name)
	}
	assert.Contains(t, names, "vars")
	assert.Contains(t, names, "log")
	assert.Contains(t, names, helpers.TaskAdd)
}

func TestListLanguages(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodGet, "/engine/language", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	res := decode[api.LanguagesResponse](t, w)
	assert.Equal(t, template.LangLua, res.Default)
	assert.Equal(t,
		[]string{template.LangAle, template.LangJPath, template.LangLua},
		res.Languages,
	)
}

func TestRunStructuredScript(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodPost, "/engine/run", api.RunRequest{
		Script: []any{
			map[string]any{"add": "{{ values }}", "register": "result"},
			map[string]any{"return": "{{ result.sum }}"},
		},
		Vars: api.Vars{"values": []any{1, 2, 3}},
		ID:   "run-1",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	res := decode[api.RunResult](t, w)
	assert.Equal(t, api.RunReturned, res.Status)
	assert.Equal(t, api.RunID("run-1"), res.ID)
	assert.Equal(t, 6.0, res.Value)
	assert.Contains(t, res.Vars, "result")
}

func TestRunYAMLScript(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodPost, "/engine/run", api.RunRequest{
		Script:   "- add: '{{ values }}'\n  register: result\n",
		Vars:     api.Vars{"values": []any{1, 2}},
		Language: template.LangJPath,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	res := decode[api.RunResult](t, w)
	assert.Equal(t, api.RunCompleted, res.Status)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, map[string]any{"sum": 3.0}, res.Vars["result"])
}

func TestRunStaticErrors(t *testing.T) {
	tests := []struct {
		name   string
		script any
		kind   api.ErrorKind
	}{
		{name: "empty", script: []any{}, kind: api.KindInvalidScript},
		{name: "bad_yaml", script: "- [unclosed", kind: api.KindInvalidScript},
		{
			name:   "two_actions",
			script: []any{map[string]any{"touch": "a", "log": "b"}},
			kind:   api.KindInvalidTask,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			w := env.do(t, http.MethodPost, "/engine/run",
				api.RunRequest{Script: tt.script},
			)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			res := decode[api.ErrorResponse](t, w)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Empty(t, env.Touched.IDs())
		})
	}
}

func TestRunRuntimeError(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodPost, "/engine/run", api.RunRequest{
		Script: "- vars: {x: 1}\n- nope: 2\n",
		ID:     "run-err",
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	res := decode[api.ErrorResponse](t, w)
	assert.Equal(t, api.KindUnknownTask, res.Kind)
	assert.Equal(t, api.RunID("run-err"), res.RunID)
	assert.Equal(t, 1.0, res.Vars["x"])
}

func TestRunBadRequests(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/engine/run", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/engine/run", api.RunRequest{
		Script:   "- return: 1",
		Language: "cobol",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported template language")
}

func TestRunTooLarge(t *testing.T) {
	env := testServer(t)
	env.Config.MaxScriptSize = 32

	w := env.do(t, http.MethodPost, "/engine/run", api.RunRequest{
		Script: "- return: " + strings.Repeat("x", 64),
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCheckScript(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/engine/check", api.RunRequest{
		Script: "- touch: a\n- touch: b\n",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	res := decode[api.CheckResponse](t, w)
	assert.Equal(t, 2, res.Tasks)
	assert.Empty(t, env.Touched.IDs())

	w = env.do(t, http.MethodPost, "/engine/check", api.RunRequest{
		Script: "- name: x\n",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodPost, "/engine/run", api.RunRequest{
		Script: "- touch: a",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(),
		`miniscript_runs_total{status="completed"} 1`,
	)
}

func TestCORSPreflight(t *testing.T) {
	env := testServer(t)
	w := env.do(t, http.MethodOptions, "/engine/run", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
