package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/prayer-schedule-api/internal/service"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newMetricsRouter(h *MetricsHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
	r.GET("/metrics/summary", h.Summary)
	return r
}

func TestReadyReportsDegradedDependencies(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		"redis":    pingFunc(func(context.Context) error { return nil }),
		"other":    nil,
	})
	w := serve(newMetricsRouter(h), http.MethodGet, "/ready", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "connection refused", body.Dependencies["postgres"])
	assert.Equal(t, "ok", body.Dependencies["redis"])
	assert.Equal(t, "disabled", body.Dependencies["other"])
}

func TestPrometheusEndpoint(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordRemoteAttempt(service.RemoteOpUpsert, "success")
	r := newMetricsRouter(NewMetricsHandler(metrics, nil))

	w := serve(r, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "schedule_remote_attempts_total")

	w = serve(r, http.MethodGet, "/metrics/summary", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "remote_call_count")

	w = serve(newMetricsRouter(NewMetricsHandler(nil, nil)), http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
