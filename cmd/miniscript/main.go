package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	app "github.com/kode4food/miniscript"
	"github.com/kode4food/miniscript/internal/config"
	"github.com/kode4food/miniscript/internal/loader"
	"github.com/kode4food/miniscript/pkg/api"
	"github.com/kode4food/miniscript/pkg/engine"
	"github.com/kode4food/miniscript/pkg/log"
	"github.com/kode4food/miniscript/pkg/template"
)

// cmdEnv carries what every subcommand needs once flags and environment
// have been merged
type cmdEnv struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	errOut io.Writer
}

var (
	ErrInvalidVar = errors.New("invalid variable, expected name=value")
	ErrRunFailed  = errors.New("script run failed")
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out, errOut io.Writer) *cli.App {
	env := &cmdEnv{out: out, errOut: errOut}

	return &cli.App{
		Name:      app.Name,
		Usage:     "Run task scripts written in YAML or JSON",
		Version:   app.Version,
		Writer:    out,
		ErrWriter: errOut,

		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "language",
				Aliases: []string{"l"},
				Usage:   "Template language (env: SCRIPT_LANGUAGE)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error (env: LOG_LEVEL)",
			},
		},
		Before: func(c *cli.Context) error {
			cfg := config.NewDefaultConfig()
			if err := cfg.LoadFromEnv(); err != nil {
				return err
			}
			if c.IsSet("language") {
				cfg.Language = c.String("language")
			}
			if c.IsSet("log-level") {
				cfg.LogLevel = c.String("log-level")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			env.cfg = cfg
			env.logger = log.NewWithWriter(errOut,
				app.Name, os.Getenv("ENV"), app.Version,
				log.ParseLevel(cfg.LogLevel),
			)
			return nil
		},
		Commands: []*cli.Command{
			env.runCommand(),
			env.checkCommand(),
			env.tasksCommand(),
			env.serveCommand(),
		},
	}
}

func (e *cmdEnv) runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a script and print its result as JSON",
		ArgsUsage: "SCRIPT",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "var",
				Usage: "Initial variable as name=value, value parsed as YAML",
			},
			&cli.StringFlag{
				Name:  "vars",
				Usage: "File or blob URL holding a mapping of variables",
			},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			eng, err := e.engine()
			if err != nil {
				return err
			}
			script, err := e.loadScript(ctx, eng, c.Args().First())
			if err != nil {
				return err
			}
			vars, err := e.loadVars(ctx, c.String("vars"), c.StringSlice("var"))
			if err != nil {
				return err
			}

			res, err := eng.RunContext(
				ctx, engine.NewRunID(), script, engine.NewContext(vars),
			)
			if err != nil {
				_ = e.print(res)
				return fmt.Errorf("%w: %w", ErrRunFailed, err)
			}
			return e.print(res)
		},
	}
}

func (e *cmdEnv) checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Statically validate a script without running it",
		ArgsUsage: "SCRIPT",
		Action: func(c *cli.Context) error {
			eng, err := e.engine()
			if err != nil {
				return err
			}
			script, err := e.loadScript(c.Context, eng, c.Args().First())
			if err != nil {
				return err
			}
			return e.print(api.CheckResponse{
				Message: "script is valid",
				Tasks:   len(script.Tasks),
			})
		},
	}
}

func (e *cmdEnv) tasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "List the registered tasks",
		Action: func(c *cli.Context) error {
			reg, err := e.registry()
			if err != nil {
				return err
			}
			tasks := reg.Describe()
			return e.print(api.TasksListResponse{
				Tasks: tasks,
				Count: len(tasks),
			})
		},
	}
}

func (e *cmdEnv) registry() (*engine.Registry, error) {
	reg := engine.NewRegistry()
	if err := engine.RegisterBuiltins(reg, e.logger); err != nil {
		return nil, err
	}
	return reg, nil
}

func (e *cmdEnv) engine() (*engine.Engine, error) {
	reg, err := e.registry()
	if err != nil {
		return nil, err
	}
	templates := template.NewRegistrySized(e.cfg.CompileCacheSize)
	port, err := templates.Port(e.cfg.Language)
	if err != nil {
		return nil, err
	}
	return engine.New(reg, port, engine.WithLogger(e.logger)), nil
}

func (e *cmdEnv) loadScript(
	ctx context.Context, eng *engine.Engine, source string,
) (*api.Script, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: no script given", api.ErrInvalidScript)
	}
	doc, err := loader.New(e.cfg.MaxScriptSize).Load(ctx, source)
	if err != nil {
		return nil, err
	}
	return eng.Parse(doc)
}

func (e *cmdEnv) loadVars(
	ctx context.Context, source string, assigns []string,
) (api.Vars, error) {
	vars := api.Vars{}
	if source != "" {
		loaded, err := loader.New(e.cfg.MaxScriptSize).LoadVars(ctx, source)
		if err != nil {
			return nil, err
		}
		vars = loaded
	}

	for _, assign := range assigns {
		name, raw, ok := strings.Cut(assign, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidVar, assign)
		}
		value, err := loader.Decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		vars[name] = value
	}
	return vars, nil
}

func (e *cmdEnv) print(value any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
