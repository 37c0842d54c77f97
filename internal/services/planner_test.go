package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/travelplanner-backend/internal/data/repos"
	"github.com/yungbote/travelplanner-backend/internal/data/repos/testutil"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/cache"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/fallback"
	"github.com/yungbote/travelplanner-backend/internal/planner/postgen"
	"github.com/yungbote/travelplanner-backend/internal/platform/apierr"
	"github.com/yungbote/travelplanner-backend/internal/platform/ctxutil"
	"github.com/yungbote/travelplanner-backend/internal/platform/dbctx"
	"github.com/yungbote/travelplanner-backend/internal/sse"
)

func travelPrefs() contract.TravelPreferences {
	return contract.TravelPreferences{
		DepartureDate: "2026-09-10", ReturnDate: "2026-09-20",
		Origins: "GRU", Destinations: "LIS, MAD", Adults: 2,
		FlightPreference: contract.FlightDirect, FlightWindow: contract.WindowAny,
		Baggage: contract.BaggageChecked, RiskTolerance: contract.RiskMedium,
		LodgingProfile: contract.LodgingComfort,
	}
}

func request() contract.GenerateRequest {
	return contract.GenerateRequest{Locale: contract.LocaleEN, Source: "landing", Preferences: travelPrefs()}
}

type fakeGenerator struct {
	calls   atomic.Int32
	release chan struct{}
	mode    contract.Mode
	chunks  int
	panics  bool
	ctxErr  atomic.Value
}

func (g *fakeGenerator) result(locale contract.Locale, prefs contract.TravelPreferences) contract.GenerationResult {
	if g.mode == contract.ModeFallback {
		return contract.GenerationResult{Report: fallback.Synthesize(locale, prefs, fallback.ReasonProviderFailure), Mode: contract.ModeFallback}
	}
	r := fallback.Filler(locale, prefs)
	r.Title = "Lisbon and Madrid in ten days"
	return contract.GenerationResult{Report: r, Mode: contract.ModeAI, Model: "gpt-4o-mini"}
}

func (g *fakeGenerator) Generate(ctx context.Context, locale contract.Locale, prefs contract.TravelPreferences) contract.GenerationResult {
	g.calls.Add(1)
	if g.release != nil {
		<-g.release
	}
	if err := ctx.Err(); err != nil {
		g.ctxErr.Store(err)
	}
	return g.result(locale, prefs)
}

func (g *fakeGenerator) Stream(ctx context.Context, locale contract.Locale, prefs contract.TravelPreferences, onText func(string)) contract.GenerationResult {
	g.calls.Add(1)
	if g.panics {
		onText(`{"title":"Lisbon and Madrid in ten days","summary":"Two capitals"`)
		panic("upstream decoder exploded")
	}
	res := g.result(locale, prefs)
	raw, _ := json.Marshal(res.Report)
	step := len(raw) / max(g.chunks, 1)
	if step == 0 {
		step = 1
	}
	for i := step; i < len(raw); i += step {
		onText(string(raw[:i]))
	}
	onText(string(raw))
	return res
}

type recordingSink struct {
	mu       sync.Mutex
	deltas   []sse.Progress
	complete *completeEvent
	errCode  string
}

type completeEvent struct {
	report contract.PlannerReport
	mode   contract.Mode
	planID string
}

func (s *recordingSink) Delta(p sse.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return sse.ErrTerminated
	}
	s.deltas = append(s.deltas, p)
	return nil
}

func (s *recordingSink) Complete(r contract.PlannerReport, m contract.Mode, planID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal() {
		return sse.ErrTerminated
	}
	s.complete = &completeEvent{report: r, mode: m, planID: planID}
	return nil
}

func (s *recordingSink) EnsureTerminal(code, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.terminal() {
		s.errCode = code
	}
}

func (s *recordingSink) terminal() bool { return s.complete != nil || s.errCode != "" }

type harness struct {
	svc      PlannerService
	gen      *fakeGenerator
	cache    *cache.Cache
	pipeline *postgen.Pipeline
	plans    repos.PlanRepo
	events   repos.EventRepo
	metrics  *observability.Metrics
}

func newHarness(t *testing.T, gen *fakeGenerator) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	m := observability.New()
	c := cache.New(log, cache.NewRepoStore(repos.NewCacheRepo(db, log)), cache.Config{}, cache.WithMetrics(m))
	plans := repos.NewPlanRepo(db, log)
	events := repos.NewEventRepo(db, log)
	p := postgen.New(log, plans, events, c, m)
	t.Cleanup(func() {
		p.Wait()
		c.Wait()
	})
	return &harness{
		svc:      NewPlannerService(log, gen, c, p, time.Minute),
		gen:      gen,
		cache:    c,
		pipeline: p,
		plans:    plans,
		events:   events,
		metrics:  m,
	}
}

func withUser(ctx context.Context) context.Context {
	ctx = ctxutil.WithIdentity(ctx, &ctxutil.Identity{UserID: "user-42"})
	return ctxutil.WithTraceData(ctx, &ctxutil.TraceData{RequestID: "req-abc"})
}

func TestGenerateCachesFreshResults(t *testing.T) {
	h := newHarness(t, &fakeGenerator{})
	ctx := withUser(context.Background())

	first, err := h.svc.Generate(ctx, request())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first.Result.Mode != contract.ModeAI || first.FromCache {
		t.Fatalf("first=%+v", first)
	}
	h.pipeline.Wait()

	second, err := h.svc.Generate(ctx, request())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !second.FromCache || second.Result.Mode != contract.ModeAI {
		t.Fatalf("second should come from cache: %+v", second)
	}
	if second.Result.Report.Title != first.Result.Report.Title {
		t.Fatalf("cached title=%q", second.Result.Report.Title)
	}
	if n := h.gen.calls.Load(); n != 1 {
		t.Fatalf("generator calls=%d want 1", n)
	}
	h.pipeline.Wait()

	plans, err := h.plans.ListByUser(dbctx.From(ctx), "user-42", 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(plans) != 1 {
		t.Fatalf("cache hits must not persist again: plans=%d", len(plans))
	}
	events, err := h.events.ListBySource(dbctx.From(ctx), "landing", 10)
	if err != nil || len(events) != 2 {
		t.Fatalf("expected an event per request: %d %v", len(events), err)
	}
	if h.metrics.GenerationCount("landing", "ai", postgen.ChannelSync) != 2 {
		t.Fatalf("generation metric not recorded per request")
	}
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	h := newHarness(t, &fakeGenerator{})

	req := request()
	req.Preferences.ReturnDate = "2026-09-01"
	_, err := h.svc.Generate(context.Background(), req)
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	var ve *contract.ValidationError
	if !errors.As(err, &ve) || !ve.Has("data_volta") {
		t.Fatalf("expected data_volta issue, got %v", err)
	}

	req = request()
	req.Locale = "fr"
	if _, err := h.svc.Generate(context.Background(), req); !errors.As(err, &ve) || !ve.Has("locale") {
		t.Fatalf("expected locale issue, got %v", err)
	}
	if h.gen.calls.Load() != 0 {
		t.Fatalf("invalid requests must not reach the generator")
	}
}

func TestGenerateCoalescesIdenticalRequests(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{})}
	h := newHarness(t, gen)

	const n = 5
	var wg sync.WaitGroup
	results := make([]Generation, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.Generate(withUser(context.Background()), request())
		}(i)
	}
	for gen.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	for i := range results {
		if errs[i] != nil || results[i].Result.Mode != contract.ModeAI {
			t.Fatalf("result %d: %+v %v", i, results[i], errs[i])
		}
	}
	if c := gen.calls.Load(); c != 1 {
		t.Fatalf("generator calls=%d want 1", c)
	}
}

func TestGenerateSurvivesCallerCancellation(t *testing.T) {
	gen := &fakeGenerator{release: make(chan struct{})}
	h := newHarness(t, gen)

	ctx, cancel := context.WithCancel(withUser(context.Background()))
	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Generate(ctx, request())
		done <- err
	}()
	for gen.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("caller should see its own cancellation, got %v", err)
	}
	close(gen.release)

	// A follow-up request joins or reuses the detached generation.
	res, err := h.svc.Generate(withUser(context.Background()), request())
	if err != nil || res.Result.Mode != contract.ModeAI {
		t.Fatalf("follow-up: %+v %v", res, err)
	}
	if v := gen.ctxErr.Load(); v != nil {
		t.Fatalf("generation context was cancelled by the caller: %v", v)
	}
}

func TestStreamEmitsMonotonicDeltasThenComplete(t *testing.T) {
	h := newHarness(t, &fakeGenerator{chunks: 25})
	sink := &recordingSink{}

	if err := h.svc.Stream(withUser(context.Background()), request(), sink); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(sink.deltas) == 0 {
		t.Fatalf("expected deltas")
	}
	for i := 1; i < len(sink.deltas); i++ {
		if len(sink.deltas[i].Sections) < len(sink.deltas[i-1].Sections) {
			t.Fatalf("delta %d shrank: %d < %d", i, len(sink.deltas[i].Sections), len(sink.deltas[i-1].Sections))
		}
	}
	if sink.complete == nil || sink.errCode != "" {
		t.Fatalf("expected a single complete event, got %+v err=%q", sink.complete, sink.errCode)
	}
	if sink.complete.mode != contract.ModeAI || sink.complete.planID == "" {
		t.Fatalf("complete=%+v", sink.complete)
	}

	plans, err := h.plans.ListByUser(dbctx.From(context.Background()), "user-42", 10)
	if err != nil || len(plans) != 1 || plans[0].ID.String() != sink.complete.planID {
		t.Fatalf("plan not persisted under the streamed id: %v %v", plans, err)
	}
	if plans[0].Channel != postgen.ChannelStream {
		t.Fatalf("channel=%q", plans[0].Channel)
	}
	if _, ok := h.cache.Get(context.Background(), cache.HashFor(contract.LocaleEN, travelPrefs())); !ok {
		t.Fatalf("streamed ai result should be cached")
	}
}

func TestStreamServesCacheHitWithoutDeltas(t *testing.T) {
	h := newHarness(t, &fakeGenerator{chunks: 10})
	ctx := withUser(context.Background())
	if err := h.svc.Stream(ctx, request(), &recordingSink{}); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	sink := &recordingSink{}
	if err := h.svc.Stream(ctx, request(), sink); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(sink.deltas) != 0 || sink.complete == nil || sink.complete.planID != "" {
		t.Fatalf("cache hit should complete at once: deltas=%d complete=%+v", len(sink.deltas), sink.complete)
	}
	if h.gen.calls.Load() != 1 {
		t.Fatalf("generator calls=%d want 1", h.gen.calls.Load())
	}
}

func TestStreamFallbackCompletesWithoutPlan(t *testing.T) {
	h := newHarness(t, &fakeGenerator{mode: contract.ModeFallback})
	sink := &recordingSink{}
	if err := h.svc.Stream(withUser(context.Background()), request(), sink); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if sink.complete == nil || sink.complete.mode != contract.ModeFallback || sink.complete.planID != "" {
		t.Fatalf("complete=%+v", sink.complete)
	}
	n := len(sink.complete.report.Sections)
	if n < 4 || n > 8 {
		t.Fatalf("fallback sections=%d", n)
	}
}

func TestStreamPanicStillTerminates(t *testing.T) {
	h := newHarness(t, &fakeGenerator{panics: true})
	sink := &recordingSink{}
	_ = h.svc.Stream(withUser(context.Background()), request(), sink)

	if len(sink.deltas) != 1 {
		t.Fatalf("expected the partial delta before the failure, got %d", len(sink.deltas))
	}
	if sink.complete != nil || sink.errCode != apierr.CodeInternal {
		t.Fatalf("expected terminal error, complete=%+v code=%q", sink.complete, sink.errCode)
	}
}

func TestStreamInvalidRequestSendsErrorEvent(t *testing.T) {
	h := newHarness(t, &fakeGenerator{})
	req := request()
	req.Preferences.Adults = 0
	sink := &recordingSink{}
	if err := h.svc.Stream(context.Background(), req, sink); err == nil {
		t.Fatalf("expected validation error")
	}
	if sink.errCode != apierr.CodeInvalidRequest {
		t.Fatalf("terminal code=%q", sink.errCode)
	}
}
