package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/travelplanner-backend/internal/http/response"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/ratelimit"
	"github.com/yungbote/travelplanner-backend/internal/platform/apierr"
	"github.com/yungbote/travelplanner-backend/internal/platform/ctxutil"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type RateLimitConfig struct {
	Namespace string
	Max       int
	Window    time.Duration
}

// RateLimit admits at most cfg.Max requests per cfg.Window per caller. The
// caller is the authenticated user, or the client IP when there is none.
// Limiter errors admit the request.
func RateLimit(log *logger.Logger, limiter ratelimit.Limiter, cfg RateLimitConfig, m *observability.Metrics) gin.HandlerFunc {
	if limiter == nil || cfg.Max <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	mwLog := log.With("Middleware", "RateLimit", "namespace", cfg.Namespace)
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id := ctxutil.GetIdentity(c.Request.Context()); id != nil {
			key = id.UserID
		}
		d, err := limiter.Check(c.Request.Context(), cfg.Namespace, key, cfg.Max, cfg.Window)
		if err != nil {
			mwLog.Warn("rate limiter unavailable, admitting request",
				"request_id", ctxutil.RequestID(c.Request.Context()),
				"error", err,
			)
			c.Next()
			return
		}
		if !d.OK {
			m.IncRateLimited(cfg.Namespace)
			response.RespondProblem(c, apierr.RateLimited(d.RetryAfterSeconds))
			return
		}
		c.Next()
	}
}
