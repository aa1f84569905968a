package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check reports whether a dependency is reachable
type Check func(ctx context.Context) error

// HealthHandler reports process and dependency health
type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 5 * time.Second,
		started: time.Now(),
	}
}

// HealthResponse is the health payload
type HealthResponse struct {
	Status       string            `json:"status"`
	Uptime       string            `json:"uptime"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Live always succeeds while the process serves requests
// GET /health/live
func (h *HealthHandler) Live(c echo.Context) error {
	return SuccessResponse(c, HealthResponse{Status: "ok", Uptime: time.Since(h.started).Round(time.Second).String()})
}

// Ready checks every dependency and returns 503 if any is down
// GET /health
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:       "ok",
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		Dependencies: make(map[string]string, len(h.checks)),
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Dependencies[name] = err.Error()
			continue
		}
		resp.Dependencies[name] = "ok"
	}

	if resp.Status != "ok" {
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return SuccessResponse(c, resp)
}

// RegisterRoutes registers the health routes
func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Ready)
	e.GET("/health/live", h.Live)
}
