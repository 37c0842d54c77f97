// Package postgen runs the best-effort side effects that follow a generation.
// Every step is independent: a failure is logged and counted, never returned.
package postgen

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/travelplanner-backend/internal/data/repos"
	domain "github.com/yungbote/travelplanner-backend/internal/domain/planner"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/platform/dbctx"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

const (
	ChannelSync   = "sync"
	ChannelStream = "stream"

	StepPersist   = "persist"
	StepAnalytics = "analytics"
	StepMetric    = "metric"
	StepCache     = "cache"

	backgroundTimeout = 15 * time.Second
)

type CacheWriter interface {
	Set(ctx context.Context, hash string, report contract.PlannerReport, model string) error
}

type Input struct {
	RequestID   string
	UserID      string
	Locale      contract.Locale
	Source      string
	Channel     string
	Preferences contract.TravelPreferences
	Result      contract.GenerationResult
	CacheKey    string
	// FromCache marks results served from the cache; they are neither
	// persisted again nor written back.
	FromCache bool
}

func (in Input) fresh() bool {
	return in.Result.Mode == contract.ModeAI && !in.FromCache
}

type Pipeline struct {
	log     *logger.Logger
	plans   repos.PlanRepo
	events  repos.EventRepo
	cache   CacheWriter
	metrics *observability.Metrics
	wg      sync.WaitGroup
}

func New(baseLog *logger.Logger, plans repos.PlanRepo, events repos.EventRepo, cache CacheWriter, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		log:     baseLog.With("service", "PostGeneration"),
		plans:   plans,
		events:  events,
		cache:   cache,
		metrics: metrics,
	}
}

// Run executes every step in order and returns the stored plan id, if any.
func (p *Pipeline) Run(ctx context.Context, in Input) string {
	id := p.Persist(ctx, in)
	p.Finish(ctx, in)
	return id
}

// Persist stores fresh AI results and returns the plan id, or "".
func (p *Pipeline) Persist(ctx context.Context, in Input) string {
	if !in.fresh() || p.plans == nil {
		return ""
	}
	var id string
	p.step(ctx, in, StepPersist, func(ctx context.Context) error {
		prefsJSON, err := json.Marshal(in.Preferences)
		if err != nil {
			return err
		}
		reportJSON, err := json.Marshal(in.Result.Report)
		if err != nil {
			return err
		}
		plan, err := p.plans.Create(dbctx.From(ctx), &domain.Plan{
			UserID:      in.UserID,
			Locale:      string(in.Locale),
			Title:       in.Result.Report.Title,
			Mode:        string(in.Result.Mode),
			Model:       in.Result.Model,
			Channel:     in.Channel,
			Preferences: datatypes.JSON(prefsJSON),
			Report:      datatypes.JSON(reportJSON),
		})
		if err != nil {
			return err
		}
		id = plan.ID.String()
		return nil
	})
	return id
}

// Finish runs the analytics, metric and cache steps.
func (p *Pipeline) Finish(ctx context.Context, in Input) {
	if in.Source != "" && p.events != nil {
		p.step(ctx, in, StepAnalytics, func(ctx context.Context) error {
			data, _ := json.Marshal(map[string]any{"from_cache": in.FromCache, "model": in.Result.Model})
			return p.events.Create(dbctx.From(ctx), &domain.Event{
				ID:        uuid.New(),
				Name:      domain.EventPlanGenerated,
				UserID:    in.UserID,
				Source:    in.Source,
				Locale:    string(in.Locale),
				Mode:      string(in.Result.Mode),
				Channel:   in.Channel,
				RequestID: in.RequestID,
				Data:      datatypes.JSON(data),
			})
		})
	}

	p.step(ctx, in, StepMetric, func(context.Context) error {
		p.metrics.IncGeneration(in.Source, string(in.Result.Mode), in.Channel)
		return nil
	})

	if in.fresh() && in.CacheKey != "" && p.cache != nil {
		p.step(ctx, in, StepCache, func(ctx context.Context) error {
			return p.cache.Set(ctx, in.CacheKey, in.Result.Report, in.Result.Model)
		})
	}
}

// Background runs the whole pipeline detached from the caller's
// cancellation, so a closed connection does not abort the writes.
func (p *Pipeline) Background(ctx context.Context, in Input) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundTimeout)
		defer cancel()
		p.Run(bctx, in)
	}()
}

// Wait blocks until background runs finish.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) step(ctx context.Context, in Input, name string, fn func(context.Context) error) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = fn(ctx)
	}()
	if err == nil {
		return
	}
	p.metrics.IncPostgenFailure(name)
	p.log.Warn("post-generation step failed",
		"request_id", in.RequestID,
		"step", name,
		"mode", in.Result.Mode,
		"channel", in.Channel,
		"error", err,
	)
}
