// Package server assembles the echo API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/jmountifield/graph-cisco-meraki/internal/handlers"
	"github.com/jmountifield/graph-cisco-meraki/pkg/middleware"
)

type Config struct {
	ServiceName  string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// DependsOn names the startup dependencies the server waits for
	DependsOn []string
}

type Server struct {
	echo   *echo.Echo
	cfg    Config
	logger ectologger.Logger
}

// New builds the echo instance with the middleware stack and every route.
func New(cfg Config, runs *handlers.RunHandler, health *handlers.HealthHandler, logger ectologger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(logger)

	e.Use(echomw.Recover())
	e.Use(middleware.Context())
	e.Use(otelecho.Middleware(cfg.ServiceName))
	e.Use(middleware.Logger(logger))

	health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	runs.RegisterRoutes(api)

	return &Server{echo: e, cfg: cfg, logger: logger}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) GetName() string {
	return "http"
}

func (s *Server) DependsOn() []string {
	return s.cfg.DependsOn
}

// Start listens in the background. Bind errors surface through the log.
func (s *Server) Start(_ context.Context) error {
	s.echo.Server.ReadTimeout = s.cfg.ReadTimeout
	s.echo.Server.WriteTimeout = s.cfg.WriteTimeout
	s.echo.Server.IdleTimeout = s.cfg.IdleTimeout

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("HTTP server stopped")
		}
	}()

	s.logger.Infof("HTTP server listening on %s", addr)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
