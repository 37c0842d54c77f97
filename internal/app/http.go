package app

import (
	"github.com/yungbote/travelplanner-backend/internal/config"
	"github.com/yungbote/travelplanner-backend/internal/http"
	httpH "github.com/yungbote/travelplanner-backend/internal/http/handlers"
	httpMW "github.com/yungbote/travelplanner-backend/internal/http/middleware"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type Middleware struct {
	Auth          *httpMW.AuthMiddleware
	GenerateLimit httpMW.RateLimitConfig
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Planner *httpH.PlannerHandler
}

func wireHandlers(log *logger.Logger, cfg *config.Config, metrics *observability.Metrics, services Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{"database": httpH.PingFunc(clients.pingDB)}
	if clients.Redis != nil {
		checks["redis"] = httpH.PingFunc(clients.pingRedis)
	}
	return Handlers{
		Health:  httpH.NewHealthHandler(checks, metrics),
		Planner: httpH.NewPlannerHandler(log, services.Planner, cfg.HTTP.SSEHeartbeat.Duration),
	}
}

func wireMiddleware(log *logger.Logger, cfg *config.Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		GenerateLimit: httpMW.RateLimitConfig{
			Namespace: "generate",
			Max:       cfg.RateLimit.GenerateMax,
			Window:    cfg.RateLimit.GenerateWindow.Duration,
		},
	}
}

func wireServer(log *logger.Logger, cfg *config.Config, metrics *observability.Metrics, services Services, clients Clients) *http.Server {
	handlers := wireHandlers(log, cfg, metrics, services, clients)
	middleware := wireMiddleware(log, cfg)

	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewServer(http.ServerConfig{
		Addr:              cfg.HTTP.Addr,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
		IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
	}, http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		ServiceName:     serviceName,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		AuthMiddleware:  middleware.Auth,
		GenerateLimit:   httpMW.RateLimit(log, services.Limiter, middleware.GenerateLimit, metrics),
		PlannerHandler:  handlers.Planner,
		HealthHandler:   handlers.Health,
	})
}
