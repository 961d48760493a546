package engine

import (
	"context"
	"log/slog"

	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/template"
)

const (
	TaskVars = "vars"
	TaskLog  = "log"

	LogDebug   = "debug"
	LogInfo    = "info"
	LogWarning = "warning"
	LogError   = "error"
)

var logLevels = [...]struct {
	name  string
	level slog.Level
}{
	{LogDebug, slog.LevelDebug},
	{LogInfo, slog.LevelInfo},
	{LogWarning, slog.LevelWarn},
	{LogError, slog.LevelError},
}

// RegisterBuiltins adds the vars and log tasks to r. The log task writes
// through logger
func RegisterBuiltins(r *Registry, logger *slog.Logger) error {
	if err := r.Register(TaskVars, api.TaskSpec{FreeForm: true}, setVars); err != nil {
		return err
	}

	optional := make(map[string]any, len(logLevels))
	for _, l := range logLevels {
		optional[l.name] = nil
	}
	return r.Register(TaskLog,
		api.TaskSpec{
			Optional:  optional,
			Singleton: LogInfo,
		},
		func(ctx context.Context, params api.Params, _ *Context) (any, error) {
			for _, l := range logLevels {
				if msg, ok := params[l.name]; ok {
					logger.Log(ctx, l.level, template.Stringify(msg))
				}
			}
			return nil, nil
		},
	)
}

// setVars writes every parameter to the persistent variables, in name order
func setVars(_ context.Context, params api.Params, c *Context) (any, error) {
	vars := api.Vars(params)
	for _, name := range vars.SortedNames() {
		c.Set(name, vars[name])
	}
	return map[string]any(params), nil
}
