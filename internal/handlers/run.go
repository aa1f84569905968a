package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/jmountifield/graph-cisco-meraki/internal/collector"
	"github.com/jmountifield/graph-cisco-meraki/pkg/runner"
)

// RunStarter starts a collection run in the background
type RunStarter interface {
	Start(ctx context.Context) (uuid.UUID, error)
}

// RunReader looks up recorded runs
type RunReader interface {
	Get(ctx context.Context, runID uuid.UUID) (*runner.Report, error)
}

// RunHandler handles collection run API requests
type RunHandler struct {
	starter RunStarter
	runs    RunReader
	logger  ectologger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(starter RunStarter, runs RunReader, logger ectologger.Logger) *RunHandler {
	return &RunHandler{
		starter: starter,
		runs:    runs,
		logger:  logger,
	}
}

// StartRunResponse is returned when a run was accepted
type StartRunResponse struct {
	RunID  uuid.UUID         `json:"run_id"`
	Status runner.StepStatus `json:"status"`
}

// Start begins a collection run
// POST /api/v1/runs
func (h *RunHandler) Start(c echo.Context) error {
	ctx := c.Request().Context()

	runID, err := h.starter.Start(ctx)
	if err != nil {
		if errors.Is(err, collector.ErrRunInProgress) {
			return httperror.NewHTTPError(http.StatusConflict, err.Error())
		}
		h.logger.WithContext(ctx).WithError(err).Error("Failed to start run")
		return err
	}

	return AcceptedResponse(c, StartRunResponse{RunID: runID, Status: runner.StatusRunning})
}

// Get returns a run report
// GET /api/v1/runs/:id
func (h *RunHandler) Get(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	report, err := h.runs.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, report)
}

// RegisterRoutes registers the run routes. Lookups are only registered when a run history is configured.
func (h *RunHandler) RegisterRoutes(g *echo.Group) {
	runs := g.Group("/runs")
	runs.POST("", h.Start)
	if h.runs != nil {
		runs.GET("/:id", h.Get)
	}
}
