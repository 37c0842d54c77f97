package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/travelplanner-backend/internal/http/handlers"
	httpMW "github.com/yungbote/travelplanner-backend/internal/http/middleware"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	// ServiceName enables otelgin spans when set.
	ServiceName     string
	CORSOrigins     []string
	MaxRequestBytes int64

	AuthMiddleware *httpMW.AuthMiddleware
	// GenerateLimit guards both generation endpoints.
	GenerateLimit gin.HandlerFunc

	PlannerHandler *httpH.PlannerHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.ReadyCheck)
		r.GET("/metrics", cfg.HealthHandler.Metrics)
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireIdentity())
		}

		// Planner
		if cfg.PlannerHandler != nil {
			planner := protected.Group("/planner")
			planner.Use(httpMW.LimitBody(cfg.MaxRequestBytes))
			if cfg.GenerateLimit != nil {
				planner.Use(cfg.GenerateLimit)
			}
			planner.POST("/generate", cfg.PlannerHandler.Generate)
			planner.POST("/stream", cfg.PlannerHandler.Stream)
		}
	}

	return r
}
