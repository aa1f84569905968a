package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("ready", func(t *testing.T) {
		e := echo.New()
		NewHealthHandler(map[string]Check{"postgres": healthy, "redis": healthy}).RegisterRoutes(e)

		rec := do(e, http.MethodGet, "/health")
		require.Equal(t, http.StatusOK, rec.Code)

		var body HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, body.Dependencies)
	})

	t.Run("degraded", func(t *testing.T) {
		e := echo.New()
		NewHealthHandler(map[string]Check{"postgres": healthy, "memgraph": down}).RegisterRoutes(e)

		rec := do(e, http.MethodGet, "/health")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "connection refused", body.Dependencies["memgraph"])
	})

	t.Run("live ignores dependencies", func(t *testing.T) {
		e := echo.New()
		NewHealthHandler(map[string]Check{"memgraph": down}).RegisterRoutes(e)
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/health/live").Code)
	})
}
