package app

import (
	"context"
	"fmt"

	"github.com/yungbote/travelplanner-backend/internal/config"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/cache"
	"github.com/yungbote/travelplanner-backend/internal/planner/postgen"
	"github.com/yungbote/travelplanner-backend/internal/planner/provider"
	"github.com/yungbote/travelplanner-backend/internal/planner/ratelimit"
	"github.com/yungbote/travelplanner-backend/internal/planner/transport"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
	"github.com/yungbote/travelplanner-backend/internal/services"
)

type Services struct {
	Orchestrator *provider.Orchestrator
	Cache        *cache.Cache
	PostGen      *postgen.Pipeline
	Limiter      ratelimit.Limiter
	Planner      services.PlannerService
}

// Wait blocks until detached cache and post-generation work finishes.
func (s Services) Wait() {
	if s.PostGen != nil {
		s.PostGen.Wait()
	}
	if s.Cache != nil {
		s.Cache.Wait()
	}
}

func wireServices(ctx context.Context, log *logger.Logger, cfg *config.Config, metrics *observability.Metrics, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	orch, err := provider.New(ctx, log, provider.Config{
		Backend:       provider.Backend(cfg.Provider.Backend),
		Model:         cfg.Provider.Model,
		FallbackModel: cfg.Provider.FallbackModel,
		BaseURL:       cfg.Provider.BaseURL,
		APIKey:        cfg.Provider.APIKey,
		SchemaMode:    cfg.Provider.SchemaMode,
		Referer:       cfg.Provider.Referer,
		Title:         cfg.Provider.Title,
		Transport: transport.Config{
			Total:          cfg.Budget.Total.Duration,
			JSONAttemptCap: cfg.Budget.JSONAttemptCap.Duration,
			TextAttemptCap: cfg.Budget.TextAttemptCap.Duration,
			Reserve:        cfg.Budget.Reserve.Duration,
			MinTextBudget:  cfg.Budget.MinTextBudget.Duration,
			Temperature:    cfg.Provider.Temperature,
			MaxTokens:      cfg.Provider.MaxTokens,
		},
	}, metrics, nil)
	if err != nil {
		return Services{}, fmt.Errorf("init planner provider: %w", err)
	}

	reportCache := cache.New(log, cache.NewRepoStore(reposet.Cache), cache.Config{
		TTL:     cfg.Cache.TTL.Duration,
		LRUSize: cfg.Cache.LRUSize,
		LRUTTL:  cfg.Cache.LRUTTL.Duration,
	}, cache.WithMetrics(metrics))

	pipeline := postgen.New(log, reposet.Plan, reposet.Event, reportCache, metrics)

	var limiter ratelimit.Limiter = ratelimit.NewMemory()
	if clients.Redis != nil {
		limiter = ratelimit.NewRedis(clients.Redis)
	}

	return Services{
		Orchestrator: orch,
		Cache:        reportCache,
		PostGen:      pipeline,
		Limiter:      limiter,
		Planner:      services.NewPlannerService(log, orch, reportCache, pipeline, orch.Budget()),
	}, nil
}
