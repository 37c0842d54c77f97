package postgen

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/travelplanner-backend/internal/data/repos"
	"github.com/yungbote/travelplanner-backend/internal/data/repos/testutil"
	domain "github.com/yungbote/travelplanner-backend/internal/domain/planner"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/fallback"
	"github.com/yungbote/travelplanner-backend/internal/platform/dbctx"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

func prefs() contract.TravelPreferences {
	return contract.TravelPreferences{
		DepartureDate: "2026-09-10", ReturnDate: "2026-09-20",
		Origins: "GRU", Destinations: "LIS, MAD", Adults: 2,
		FlightPreference: contract.FlightDirect, FlightWindow: contract.WindowAny,
		Baggage: contract.BaggageChecked, RiskTolerance: contract.RiskMedium,
		LodgingProfile: contract.LodgingComfort,
	}
}

type recordingCache struct {
	err  error
	keys []string
}

func (c *recordingCache) Set(_ context.Context, hash string, _ contract.PlannerReport, _ string) error {
	c.keys = append(c.keys, hash)
	return c.err
}

type failingPlans struct{}

func (failingPlans) Create(dbctx.Context, *domain.Plan) (*domain.Plan, error) {
	return nil, errors.New("db down")
}
func (failingPlans) GetByID(dbctx.Context, uuid.UUID) (*domain.Plan, error) { return nil, nil }
func (failingPlans) ListByUser(dbctx.Context, string, int) ([]*domain.Plan, error) {
	return nil, nil
}

type panickingEvents struct{}

func (panickingEvents) Create(dbctx.Context, *domain.Event) error { panic("boom") }
func (panickingEvents) ListBySource(dbctx.Context, string, int) ([]*domain.Event, error) {
	return nil, nil
}

func aiInput(source string) Input {
	return Input{
		RequestID:   "req-1",
		UserID:      "user-1",
		Locale:      contract.LocaleEN,
		Source:      source,
		Channel:     ChannelSync,
		Preferences: prefs(),
		Result:      contract.GenerationResult{Report: fallback.Filler(contract.LocaleEN, prefs()), Mode: contract.ModeAI, Model: "gpt-4o-mini"},
		CacheKey:    "hash-1",
	}
}

func TestRunAIResultRunsEveryStep(t *testing.T) {
	db := testutil.DB(t)
	plans := repos.NewPlanRepo(db, testutil.Logger(t))
	events := repos.NewEventRepo(db, testutil.Logger(t))
	cache := &recordingCache{}
	m := observability.New()
	p := New(testutil.Logger(t), plans, events, cache, m)

	id := p.Run(context.Background(), aiInput("newsletter"))
	if id == "" {
		t.Fatalf("expected a plan id")
	}
	planID, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("plan id: %v", err)
	}
	stored, err := plans.GetByID(dbctx.From(context.Background()), planID)
	if err != nil || stored == nil || stored.UserID != "user-1" || stored.Model != "gpt-4o-mini" {
		t.Fatalf("stored=%+v err=%v", stored, err)
	}
	evs, err := events.ListBySource(dbctx.From(context.Background()), "newsletter", 10)
	if err != nil || len(evs) != 1 || evs[0].Mode != "ai" || evs[0].RequestID != "req-1" {
		t.Fatalf("events=%+v err=%v", evs, err)
	}
	if len(cache.keys) != 1 || cache.keys[0] != "hash-1" {
		t.Fatalf("cache writes=%v", cache.keys)
	}
	if m.GenerationCount("newsletter", "ai", "sync") != 1 {
		t.Fatalf("generation metric not incremented")
	}
}

func TestRunFallbackSkipsPersistAndCache(t *testing.T) {
	t.Parallel()
	cache := &recordingCache{}
	m := observability.New()
	p := New(logger.NewNop(), failingPlans{}, nil, cache, m)

	in := aiInput("")
	in.Result.Mode = contract.ModeFallback
	if id := p.Run(context.Background(), in); id != "" {
		t.Fatalf("fallback results are not persisted")
	}
	if len(cache.keys) != 0 {
		t.Fatalf("fallback results are not cached")
	}
	if m.PostgenFailureCount(StepPersist) != 0 {
		t.Fatalf("persist should not even run")
	}
	if m.GenerationCount("", "fallback", "sync") != 1 {
		t.Fatalf("metric step always runs")
	}
}

func TestRunFromCacheSkipsWriteBack(t *testing.T) {
	t.Parallel()
	cache := &recordingCache{}
	p := New(logger.NewNop(), failingPlans{}, nil, cache, nil)
	in := aiInput("")
	in.FromCache = true
	if id := p.Run(context.Background(), in); id != "" || len(cache.keys) != 0 {
		t.Fatalf("cached results are neither persisted nor written back")
	}
}

func TestStepFailuresAreSwallowed(t *testing.T) {
	t.Parallel()
	cache := &recordingCache{err: errors.New("cache down")}
	m := observability.New()
	p := New(logger.NewNop(), failingPlans{}, panickingEvents{}, cache, m)

	if id := p.Run(context.Background(), aiInput("ads")); id != "" {
		t.Fatalf("failed persist yields no id")
	}
	for _, step := range []string{StepPersist, StepAnalytics, StepCache} {
		if m.PostgenFailureCount(step) != 1 {
			t.Fatalf("%s failure not counted", step)
		}
	}
	if len(cache.keys) != 1 {
		t.Fatalf("later steps still run after earlier failures")
	}
	if m.GenerationCount("ads", "ai", "sync") != 1 {
		t.Fatalf("metric step still runs")
	}
}

func TestBackgroundIgnoresCallerCancellation(t *testing.T) {
	t.Parallel()
	cache := &recordingCache{}
	p := New(logger.NewNop(), nil, nil, cache, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Background(ctx, aiInput(""))
	p.Wait()
	if len(cache.keys) != 1 {
		t.Fatalf("background run should complete after the caller is gone")
	}
}
