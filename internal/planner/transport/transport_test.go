package transport

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/travelplanner-backend/internal/inference/engine"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/fallback"
	"github.com/yungbote/travelplanner-backend/internal/planner/prompt"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type step struct {
	text string
	err  error
}

type call struct {
	model    string
	json     bool
	stream   bool
	allotted time.Duration
}

// fakeEngine replays steps in order and charges cost of fake time per call.
type fakeEngine struct {
	mu    sync.Mutex
	steps []step
	calls []call
	clock *fakeClock
	cost  time.Duration
}

func (f *fakeEngine) next(ctx context.Context, model string, opts engine.GenerateOptions, stream bool) step {
	f.mu.Lock()
	defer f.mu.Unlock()
	var allotted time.Duration
	if dl, ok := ctx.Deadline(); ok {
		allotted = time.Until(dl).Round(time.Second)
	}
	f.calls = append(f.calls, call{model: model, json: opts.JSONSchema != nil, stream: stream, allotted: allotted})
	f.clock.Advance(f.cost)
	if len(f.steps) == 0 {
		return step{text: "nope"}
	}
	s := f.steps[0]
	f.steps = f.steps[1:]
	return s
}

func (f *fakeEngine) GenerateText(ctx context.Context, model string, _ []engine.Message, opts engine.GenerateOptions) (string, error) {
	s := f.next(ctx, model, opts, false)
	return s.text, s.err
}

func (f *fakeEngine) StreamText(ctx context.Context, model string, _ []engine.Message, opts engine.GenerateOptions, onDelta func(string)) (string, error) {
	s := f.next(ctx, model, opts, true)
	if s.err != nil {
		return "", s.err
	}
	for i := 0; i < len(s.text); i += 20 {
		end := min(i+20, len(s.text))
		onDelta(s.text[i:end])
	}
	return s.text, nil
}

func (f *fakeEngine) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func prefs() contract.TravelPreferences {
	return contract.TravelPreferences{
		DepartureDate: "2026-09-10", ReturnDate: "2026-09-20",
		Origins: "GRU", Destinations: "LIS, MAD", Adults: 2,
		FlightPreference: contract.FlightDirect, FlightWindow: contract.WindowAny,
		Baggage: contract.BaggageChecked, RiskTolerance: contract.RiskMedium,
		LodgingProfile: contract.LodgingComfort,
	}
}

func validReportJSON(t *testing.T, title string) string {
	t.Helper()
	r := fallback.Filler(contract.LocaleEN, prefs())
	r.Title = title
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func newTransport(eng *fakeEngine, m *observability.Metrics) *Transport {
	return New(logger.NewNop(), eng, "openai", DefaultConfig(), WithClock(eng.clock.Now), WithMetrics(m))
}

func request(models ...string) Request {
	p := prefs()
	return Request{
		Locale:   contract.LocaleEN,
		Prompts:  prompt.Build(contract.LocaleEN, p, prompt.Options{}),
		Models:   models,
		Fallback: fallback.Filler(contract.LocaleEN, p),
	}
}

func TestRunFirstJSONAttemptWins(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{clock: &fakeClock{}, cost: time.Second, steps: []step{{text: validReportJSON(t, "Lisbon and Madrid plan")}}}
	m := observability.New()

	res, ok := newTransport(eng, m).Run(context.Background(), request("fast", "slow"))
	if !ok {
		t.Fatalf("Run failed")
	}
	if res.Model != "fast" || res.Format != FormatJSON || res.Report.Title != "Lisbon and Madrid plan" {
		t.Fatalf("result=%+v", res)
	}
	if calls := eng.Calls(); len(calls) != 1 || !calls[0].json || calls[0].stream {
		t.Fatalf("calls=%+v", calls)
	}
	if got := m.AttemptCount("openai", "fast", "json", OutcomeNormalized); got != 1 {
		t.Fatalf("normalized attempts=%v", got)
	}
}

func TestRunFallsThroughFormatsAndCandidates(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{clock: &fakeClock{}, cost: time.Second, steps: []step{
		{err: errors.New("upstream 502")},
		{text: "short"},
		{text: "```json\n" + validReportJSON(t, "Second model plan") + "\n```"},
	}}
	m := observability.New()

	res, ok := newTransport(eng, m).Run(context.Background(), request("a", "b"))
	if !ok {
		t.Fatalf("Run failed")
	}
	if res.Model != "b" || res.Format != FormatJSON {
		t.Fatalf("result=%+v", res)
	}
	calls := eng.Calls()
	if len(calls) != 3 {
		t.Fatalf("calls=%d want 3", len(calls))
	}
	if calls[0].model != "a" || !calls[0].json || calls[1].model != "a" || calls[1].json {
		t.Fatalf("expected json then text for the first model: %+v", calls)
	}
	if m.AttemptCount("openai", "a", "json", OutcomeError) != 1 || m.AttemptCount("openai", "a", "text", OutcomeInvalid) != 1 {
		t.Fatalf("attempt metrics not recorded")
	}
}

func TestRunBudgetShrinksAcrossAttempts(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{clock: &fakeClock{}, cost: 30 * time.Second}
	m := observability.New()

	_, ok := newTransport(eng, m).Run(context.Background(), request("a", "b", "c", "d"))
	if ok {
		t.Fatalf("expected failure")
	}

	// 95s total, 3s reserve, 30s per call:
	// a/json 35s, a/text 25s, b/json 32s, b/text skipped (2s < 20s), c/json 2s, c/text skipped, d exhausted.
	want := []call{
		{model: "a", json: true, allotted: 35 * time.Second},
		{model: "a", json: false, allotted: 25 * time.Second},
		{model: "b", json: true, allotted: 32 * time.Second},
		{model: "c", json: true, allotted: 2 * time.Second},
	}
	got := eng.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls=%+v", got)
	}
	for i := range want {
		if got[i].model != want[i].model || got[i].json != want[i].json || got[i].allotted != want[i].allotted {
			t.Fatalf("call %d = %+v want %+v", i, got[i], want[i])
		}
	}
	if m.AttemptCount("openai", "b", "text", OutcomeSkipped) != 1 {
		t.Fatalf("b/text should be recorded as skipped")
	}
	if m.AttemptCount("openai", "d", "json", OutcomeSkipped) != 1 {
		t.Fatalf("d/json should be recorded as skipped")
	}
}

func TestRunStreamsOnlyFirstJSONAttempt(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{clock: &fakeClock{}, cost: time.Second, steps: []step{
		{text: `{"title": "partial only"`},
		{text: "still nothing"},
		{text: validReportJSON(t, "From the second model")},
	}}
	req := request("a", "b")
	var snapshots []string
	req.OnText = func(acc string) { snapshots = append(snapshots, acc) }

	res, ok := newTransport(eng, nil).Run(context.Background(), req)
	if !ok || res.Model != "b" {
		t.Fatalf("res=%+v ok=%v", res, ok)
	}
	calls := eng.Calls()
	if !calls[0].stream || calls[1].stream || calls[2].stream {
		t.Fatalf("only the first JSON attempt streams: %+v", calls)
	}
	if len(snapshots) != 2 || snapshots[1] != `{"title": "partial only"` {
		t.Fatalf("snapshots=%q", snapshots)
	}
	if !strings.HasPrefix(snapshots[1], snapshots[0]) {
		t.Fatalf("snapshots must accumulate")
	}
}

func TestRunTimeoutOutcome(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{clock: &fakeClock{}, cost: 40 * time.Second, steps: []step{{err: context.DeadlineExceeded}}}
	m := observability.New()
	newTransport(eng, m).Run(context.Background(), request("a"))
	if m.AttemptCount("openai", "a", "json", OutcomeTimeout) != 1 {
		t.Fatalf("timeout not recorded")
	}
}

func TestRunCanceledContextMakesNoCalls(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{clock: &fakeClock{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := newTransport(eng, nil).Run(ctx, request("a")); ok {
		t.Fatalf("expected failure")
	}
	if len(eng.Calls()) != 0 {
		t.Fatalf("no calls expected")
	}
}

func TestBudgetAllot(t *testing.T) {
	t.Parallel()
	b := NewBudget(10 * time.Second)
	if got := b.Allot(35*time.Second, 3*time.Second); got != 7*time.Second {
		t.Fatalf("allot=%v", got)
	}
	b.Spend(9 * time.Second)
	if got := b.Allot(35*time.Second, 3*time.Second); got != 0 {
		t.Fatalf("allot=%v want 0", got)
	}
	b.Spend(5 * time.Second)
	if b.Remaining() != 0 {
		t.Fatalf("remaining=%v", b.Remaining())
	}
}
