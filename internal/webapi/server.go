// Package webapi exposes a small read-mostly HTTP surface over the live
// processing graph and shared analytical state: JSON snapshots, a
// websocket feed of completed results, and a YAML-bodied reload endpoint
// that hands off to the hot-reload controller.
package webapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/hotreload"
	"github.com/sctg-development/photoacoustic-go/internal/logging"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
)

// Server wraps an echo instance bound to the controller, shared state, and
// result hub it serves views of. The zero value is not ready to use;
// construct with New.
type Server struct {
	Echo       *echo.Echo
	controller *hotreload.Controller
	state      *pastate.State
	hub        *Hub
	logger     *slog.Logger
}

// New builds a Server with routes registered but not yet listening.
// registry backs the /api/v1/metrics Prometheus scrape endpoint; a nil
// registry gets a fresh, empty one so the route is always present even
// when the caller isn't instrumenting anything yet.
func New(controller *hotreload.Controller, state *pastate.State, hub *Hub, registry *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	s := &Server{
		Echo:       e,
		controller: controller,
		state:      state,
		hub:        hub,
		logger:     logging.ForService("webapi"),
	}

	e.Use(middleware.Recover())
	e.Use(s.loggingMiddleware())

	group := e.Group("/api/v1")
	group.GET("/health", s.handleHealth)
	group.GET("/graph", s.handleGraph)
	group.GET("/state", s.handleState)
	group.POST("/reload", s.handleReload)
	group.GET("/stream", s.handleStream)
	group.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return s
}

// Start begins serving on addr. It blocks until the server stops; call it
// from its own goroutine and stop it with Shutdown.
func (s *Server) Start(addr string) error {
	if err := s.Echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return errors.New(err).
			Component("webapi").
			Category(errors.CategoryHTTP).
			Build()
	}
	return nil
}

// Shutdown gracefully stops the server, respecting ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) loggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if s.logger == nil {
				return err
			}
			req := c.Request()
			s.logger.Info("request",
				"method", req.Method,
				"path", req.URL.Path,
				"status", c.Response().Status,
				"latency_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.hub.SubscriberCount(),
	})
}

// handleGraph returns the live graph's serializable view: nodes, their
// types and parameter echoes, connections, the output id, and statistics.
func (s *Server) handleGraph(c echo.Context) error {
	view := s.controller.Graph().ToSerializableView()
	return c.JSON(http.StatusOK, view)
}

// handleState returns a snapshot of the shared analytical state: the
// latest peak and concentration results per node plus the legacy flat
// mirrors.
func (s *Server) handleState(c echo.Context) error {
	snapshot := s.state.Snapshot()
	return c.JSON(http.StatusOK, snapshot)
}

// handleReload accepts a YAML-encoded GraphConfig body, diffs it against
// the live graph through the hot-reload controller, and returns the
// per-node classification report. A malformed document or a rejected
// parameter update leaves the live graph untouched and responds with an
// error; nothing about the running pipeline changes on failure.
func (s *Server) handleReload(c echo.Context) error {
	var cfg procgraph.GraphConfig
	dec := yaml.NewDecoder(c.Request().Body)
	if err := dec.Decode(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error": "invalid graph config: " + err.Error(),
		})
	}

	report, err := s.controller.Reload(cfg)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("reload rejected", "error", err)
		}
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, report)
}
