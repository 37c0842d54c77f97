package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/travelplanner-backend/internal/observability"
)

// Pinger is a readiness dependency, such as the database or redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	checks  map[string]Pinger
	metrics *observability.Metrics
	timeout time.Duration
}

func NewHealthHandler(checks map[string]Pinger, metrics *observability.Metrics) *HealthHandler {
	return &HealthHandler{checks: checks, metrics: metrics, timeout: 2 * time.Second}
}

// GET /healthz
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /readyz
func (h *HealthHandler) ReadyCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	result := gin.H{}
	for name, p := range h.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			result[name] = err.Error()
			continue
		}
		result[name] = "ok"
	}
	c.JSON(status, gin.H{"ready": status == http.StatusOK, "checks": result})
}

// GET /metrics
func (h *HealthHandler) Metrics(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusNotFound)
		return
	}
	h.metrics.WriteHTTP(c.Writer, c.Request)
}
