package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"gocloud.dev/blob"

	app "github.com/kode4food/miniscript"
	"github.com/kode4food/miniscript/internal/archive"
	"github.com/kode4food/miniscript/internal/events"
	"github.com/kode4food/miniscript/internal/metrics"
	"github.com/kode4food/miniscript/internal/server"
	"github.com/kode4food/miniscript/pkg/log"
)

type daemon struct {
	*cmdEnv
	hub        *events.Hub
	apiServer  *server.Server
	httpServer *http.Server
	bucket     *blob.Bucket
	archived   chan struct{}
	stopArch   context.CancelFunc
	quit       chan os.Signal
}

var (
	ErrCreateServer  = errors.New("failed to create server")
	ErrCreateArchive = errors.New("failed to create run archive")
)

func (e *cmdEnv) serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API (env: API_HOST, API_PORT)",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: func(c *cli.Context) error {
			if c.IsSet("port") {
				e.cfg.APIPort = c.Int("port")
				if err := e.cfg.Validate(); err != nil {
					return err
				}
			}
			d := &daemon{
				cmdEnv: e,
				quit:   make(chan os.Signal, 1),
			}
			return d.run()
		},
	}
}

func (d *daemon) run() error {
	d.setupLogging()
	if err := d.startServer(); err != nil {
		return err
	}

	signal.Notify(d.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(d.quit)
	<-d.quit

	d.shutdown()
	return nil
}

func (d *daemon) setupLogging() {
	level := log.ParseLevel(d.cfg.LogLevel)
	d.logger = log.NewWithLevel(app.Name, os.Getenv("ENV"), app.Version, level)
	slog.SetDefault(d.logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Miniscript server starting",
		slog.String("log_level", d.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("api_host", d.cfg.APIHost),
		slog.Int("api_port", d.cfg.APIPort),
		log.Language(d.cfg.Language),
		slog.Int("compile_cache_size", d.cfg.CompileCacheSize),
		slog.Int64("max_script_size", d.cfg.MaxScriptSize))
}

func (d *daemon) startServer() error {
	tasks, err := d.registry()
	if err != nil {
		return err
	}

	d.hub = events.NewHub()
	d.apiServer, err = server.NewServer(d.cfg, tasks, d.hub, metrics.New(tasks.Names()...))
	if err != nil {
		d.hub.Close()
		return fmt.Errorf("%w: %w", ErrCreateServer, err)
	}
	if err := d.startArchive(); err != nil {
		d.hub.Close()
		return fmt.Errorf("%w: %w", ErrCreateArchive, err)
	}

	d.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", d.cfg.APIHost, d.cfg.APIPort),
		Handler: d.apiServer.SetupRoutes(),
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", d.httpServer.Addr))
		err := d.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
			d.quit <- syscall.SIGTERM
		}
	}()
	return nil
}

func (d *daemon) startArchive() error {
	if d.cfg.ArchiveURL == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	bucket, err := blob.OpenBucket(ctx, d.cfg.ArchiveURL)
	if err != nil {
		cancel()
		return err
	}
	w, err := archive.NewWriter(bucket, d.cfg.ArchivePrefix)
	if err != nil {
		cancel()
		_ = bucket.Close()
		return err
	}
	runner, err := archive.NewRunner(d.hub.NewConsumer(), w)
	if err != nil {
		cancel()
		_ = bucket.Close()
		return err
	}

	d.bucket = bucket
	d.stopArch = cancel
	d.archived = make(chan struct{})
	go func() {
		defer close(d.archived)
		if err := runner.Run(ctx); err != nil {
			slog.Error("Run archive stopped", log.Error(err))
		}
	}()

	slog.Info("Run archive enabled",
		slog.String("archive_url", d.cfg.ArchiveURL),
		slog.String("archive_prefix", d.cfg.ArchivePrefix))
	return nil
}

func (d *daemon) stopArchive() {
	if d.bucket == nil {
		return
	}
	d.stopArch()
	<-d.archived
	if err := d.bucket.Close(); err != nil {
		slog.Error("Archive bucket close failed", log.Error(err))
	}
}

func (d *daemon) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), d.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := d.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	d.apiServer.CloseWebSockets()
	d.stopArchive()
	d.hub.Close()

	slog.Info("Server exited")
}
