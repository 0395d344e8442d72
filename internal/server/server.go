// Package server hosts deployed services over HTTP.
//
// Every request is matched against the registry, bound to a session through
// the dispatcher according to the resource's session mode, rendered by the
// executor, and answered with the continuation cookie when the session is new.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/specialistvlad/gridhost/internal/ctxlog"
	"github.com/specialistvlad/gridhost/internal/dispatch"
	"github.com/specialistvlad/gridhost/internal/executor"
	"github.com/specialistvlad/gridhost/internal/message"
	"github.com/specialistvlad/gridhost/internal/model"
	"github.com/specialistvlad/gridhost/internal/registry"
	"github.com/specialistvlad/gridhost/internal/semantic"
	"github.com/specialistvlad/gridhost/internal/session"
)

// DefaultAddress is used when Config leaves Address empty.
const DefaultAddress = ":8080"

// Config holds the collaborators of a Server.
type Config struct {
	Address    string
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Scope      *semantic.Scope
}

// Server is the HTTP host.
type Server struct {
	echo       *echo.Echo
	address    string
	logger     *slog.Logger
	registry   *registry.Registry
	dispatcher *dispatch.Dispatcher
	scope      *semantic.Scope
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds a Server. The logger carried by ctx is used for every request.
func New(ctx context.Context, cfg Config) *Server {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetOutput(io.Discard)

	s := &Server{
		echo:       e,
		address:    cfg.Address,
		logger:     ctxlog.FromContext(ctx),
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
		scope:      cfg.Scope,
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("Request served.", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Any("/", s.handle)
	e.Any("/*", s.handle)

	return s
}

// Handler exposes the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves until Shutdown is called. A graceful shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Info("HTTP host starting.", "address", s.address, "routes", len(s.registry.Routes()))
	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http host on %s: %w", s.address, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	s.logger.Info("Shutting down HTTP host...")
	return s.echo.Shutdown(ctx)
}

func (s *Server) handle(c echo.Context) error {
	r := c.Request()
	logger := s.logger.With("method", r.Method, "path", r.URL.Path)
	ctx := dispatch.NewRequestContext(ctxlog.WithLogger(r.Context(), logger))

	route, ok := s.registry.Match(r.Method, r.URL.Path)
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: fmt.Sprintf("no resource serves %s %s", r.Method, r.URL.Path)})
	}
	ctx = ctxlog.With(ctx, "application", route.Application, "service", route.Service.Name, "resource", route.Resource.Name)
	logger = ctxlog.FromContext(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "cannot read request body"})
	}

	msg := message.NewHTTP(r.Header)
	msg.SetProperty(message.PropertyRequestURL, route.Service.BasePath)
	msg.SetProperty(message.PropertyMethod, r.Method)

	var sess *session.Session
	switch route.Resource.Session {
	case model.SessionExisting:
		sess, _ = s.dispatcher.Session(ctx, msg, false)
	case model.SessionCreate:
		sess, _ = s.dispatcher.Session(ctx, msg, true)
	}

	req := executor.NewRequestData(r, body)
	if msg.Header(session.CookieHeader) == "" {
		delete(req.Headers, strings.ToLower(session.CookieHeader))
	}

	resp, err := executor.Render(ctx, s.scope, route.Resource, req, sess)
	if err != nil {
		logger.Error("Resource evaluation failed.", "error", err)
		s.dispatcher.Abandon(ctx)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	out := message.NewHTTP(nil)
	s.dispatcher.Respond(ctx, out)
	for name, values := range out.Headers() {
		for _, v := range values {
			c.Response().Header().Add(name, v)
		}
	}

	return c.Blob(resp.Status, resp.ContentType, resp.Body)
}
