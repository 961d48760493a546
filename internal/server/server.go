package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	glog "github.com/gin-contrib/slog"
	"github.com/gin-gonic/gin"

	"github.com/kode4food/miniscript/internal/config"
	"github.com/kode4food/miniscript/internal/events"
	"github.com/kode4food/miniscript/internal/metrics"
	"github.com/kode4food/miniscript/pkg/engine"
	"github.com/kode4food/miniscript/pkg/template"
)

// Server implements the HTTP API of the script runner
type Server struct {
	config    *config.Config
	tasks     *engine.Registry
	templates *template.Registry
	engines   map[string]*engine.Engine
	eventHub  *events.Hub
	metrics   *metrics.Metrics
	sockets   map[*Client]struct{}
	mu        sync.Mutex
}

var (
	ErrInvalidJSON = errors.New("invalid JSON")
	ErrTooLarge    = errors.New("request body too large")
)

// NewServer creates an HTTP API server with one engine per template
// language. Every engine reports to the event hub and to the metrics
func NewServer(
	cfg *config.Config, tasks *engine.Registry, hub *events.Hub,
	m *metrics.Metrics,
) (*Server, error) {
	s := &Server{
		config:    cfg,
		tasks:     tasks,
		templates: template.NewRegistrySized(cfg.CompileCacheSize),
		engines:   map[string]*engine.Engine{},
		eventHub:  hub,
		metrics:   m,
		sockets:   map[*Client]struct{}{},
	}

	for _, lang := range s.templates.Languages() {
		port, err := s.templates.Port(lang)
		if err != nil {
			return nil, err
		}
		s.engines[lang] = engine.New(tasks, port,
			engine.WithLogger(slog.Default()),
			engine.WithObserver(hub),
			engine.WithObserver(m),
		)
	}

	if _, ok := s.engines[cfg.Language]; !ok {
		return nil, fmt.Errorf("%w: %s", template.ErrUnsupportedLanguage,
			cfg.Language)
	}
	return s, nil
}

// SetupRoutes configures and returns the HTTP router with all API endpoints
func (s *Server) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(glog.SetLogger(
		glog.WithLogger(func(c *gin.Context, l *slog.Logger) *slog.Logger {
			return slog.Default()
		}),
	))

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set(
			"Access-Control-Allow-Methods", "GET, POST, OPTIONS",
		)
		c.Writer.Header().Set(
			"Access-Control-Allow-Headers", "Content-Type, Authorization",
		)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	eng := router.Group("/engine")
	{
		eng.GET("/task", s.listTasks)
		eng.GET("/language", s.listLanguages)
		eng.POST("/run", s.runScript)
		eng.POST("/check", s.checkScript)

		// WebSocket
		eng.GET("/ws", s.handleWebSocket)
	}

	return router
}

func (s *Server) registerWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sockets[c] = struct{}{}
}

func (s *Server) unregisterWebSocket(c *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sockets, c)
}

// CloseWebSockets closes all active WebSocket connections
func (s *Server) CloseWebSockets() {
	s.mu.Lock()
	conns := make([]*Client, 0, len(s.sockets))
	for c := range s.sockets {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
