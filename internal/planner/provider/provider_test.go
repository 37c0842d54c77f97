package provider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"google.golang.org/genai"

	"github.com/yungbote/travelplanner-backend/internal/inference/engine"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/fallback"
	"github.com/yungbote/travelplanner-backend/internal/planner/prompt"
	"github.com/yungbote/travelplanner-backend/internal/planner/transport"
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

func validReport(title string) contract.PlannerReport {
	r := fallback.Filler(contract.LocaleEN, prefs())
	r.Title = title
	return r
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func hasResilientNotice(r contract.PlannerReport) bool {
	for _, a := range r.Assumptions {
		if strings.Contains(a, "resilient") || strings.Contains(a, "resiliente") {
			return true
		}
	}
	return false
}

type scriptedEngine struct {
	mu     sync.Mutex
	texts  []string
	models []string
	stream []bool
}

func (e *scriptedEngine) next(model string, stream bool) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.models = append(e.models, model)
	e.stream = append(e.stream, stream)
	if len(e.texts) == 0 {
		return ""
	}
	s := e.texts[0]
	e.texts = e.texts[1:]
	return s
}

func (e *scriptedEngine) GenerateText(_ context.Context, model string, _ []engine.Message, _ engine.GenerateOptions) (string, error) {
	s := e.next(model, false)
	if s == "" {
		return "", errors.New("no completion")
	}
	return s, nil
}

func (e *scriptedEngine) StreamText(_ context.Context, model string, msgs []engine.Message, _ engine.GenerateOptions, onDelta func(string)) (string, error) {
	s := e.next(model, true)
	if s == "" {
		return "", errors.New("no completion")
	}
	for i := 0; i < len(s); i += 32 {
		onDelta(s[i:min(i+32, len(s))])
	}
	return s, nil
}

func manualOrchestrator(eng engine.Engine, m *observability.Metrics, settings Settings) *Orchestrator {
	tr := transport.New(logger.NewNop(), eng, string(settings.Backend), transport.DefaultConfig(), transport.WithMetrics(m))
	return NewOrchestrator(logger.NewNop(), settings, Deps{Transport: tr, Metrics: m})
}

func TestGenerateMissingKeyFallsBack(t *testing.T) {
	t.Parallel()
	eng := &scriptedEngine{}
	o := manualOrchestrator(eng, nil, Settings{Backend: BackendOpenAI, Model: "gpt-4o"})

	res := o.Generate(context.Background(), contract.LocaleEN, prefs())
	if res.Mode != contract.ModeFallback {
		t.Fatalf("mode=%s", res.Mode)
	}
	if n := len(res.Report.Sections); n < 4 || n > 8 {
		t.Fatalf("sections=%d", n)
	}
	if len(eng.models) != 0 {
		t.Fatalf("no upstream calls expected, got %v", eng.models)
	}
	if _, err := contract.CheckReport(res.Report); err != nil {
		t.Fatalf("fallback must validate: %v", err)
	}
}

func TestGenerateDisabledBackend(t *testing.T) {
	t.Parallel()
	o := NewOrchestrator(logger.NewNop(), Settings{Backend: BackendDisabled}, Deps{})
	res := o.Generate(context.Background(), contract.LocalePT, prefs())
	if res.Mode != contract.ModeFallback || !hasResilientNotice(res.Report) {
		t.Fatalf("res=%+v", res)
	}
	if res.Model != "" {
		t.Fatalf("fallback carries no model label, got %q", res.Model)
	}
}

func TestGenerateManualTransportTriesSecondaryFirst(t *testing.T) {
	t.Parallel()
	eng := &scriptedEngine{texts: []string{mustJSON(t, validReport("Iberian rail and air plan"))}}
	m := observability.New()
	o := manualOrchestrator(eng, m, Settings{Backend: BackendOpenRouter, Model: "big", FallbackModel: "small", APIKey: "k"})

	res := o.Generate(context.Background(), contract.LocaleEN, prefs())
	if res.Mode != contract.ModeAI || res.Model != "small" || res.Report.Title != "Iberian rail and air plan" {
		t.Fatalf("res=%+v", res)
	}
	if len(eng.models) != 1 || eng.models[0] != "small" || eng.stream[0] {
		t.Fatalf("calls=%v stream=%v", eng.models, eng.stream)
	}
}

func TestGenerateAllCandidatesFail(t *testing.T) {
	t.Parallel()
	eng := &scriptedEngine{texts: []string{"nope", "still nope", "```json\n{\"title\": 3}\n```"}}
	o := manualOrchestrator(eng, nil, Settings{Backend: BackendLocal, Model: "m"})

	res := o.Generate(context.Background(), contract.LocaleEN, prefs())
	if res.Mode != contract.ModeFallback {
		t.Fatalf("mode=%s", res.Mode)
	}
	if _, err := contract.CheckReport(res.Report); err != nil {
		t.Fatalf("fallback must validate: %v", err)
	}
}

func TestStreamForwardsAccumulatedText(t *testing.T) {
	t.Parallel()
	body := mustJSON(t, validReport("Streaming plan for Lisbon"))
	eng := &scriptedEngine{texts: []string{body}}
	o := manualOrchestrator(eng, nil, Settings{Backend: BackendMock, Model: "mock"})

	var last string
	var calls int
	res := o.Stream(context.Background(), contract.LocaleEN, prefs(), func(acc string) {
		calls++
		if !strings.HasPrefix(acc, last) {
			t.Errorf("text must grow: %q then %q", last, acc)
		}
		last = acc
	})
	if res.Mode != contract.ModeAI || last != body || calls < 2 {
		t.Fatalf("mode=%s calls=%d", res.Mode, calls)
	}
	if !eng.stream[0] {
		t.Fatalf("first attempt should stream")
	}
}

func TestCandidatesDedupes(t *testing.T) {
	t.Parallel()
	cases := []struct {
		primary, secondary string
		want               []string
	}{
		{"a", "b", []string{"b", "a"}},
		{"a", "a", []string{"a"}},
		{"a", "", []string{"a"}},
		{" a ", "a", []string{"a"}},
		{"", "", nil},
	}
	for _, tc := range cases {
		got := Candidates(tc.primary, tc.secondary)
		if strings.Join(got, ",") != strings.Join(tc.want, ",") {
			t.Fatalf("Candidates(%q,%q)=%v want %v", tc.primary, tc.secondary, got, tc.want)
		}
	}
}

type fakeStructured struct {
	res   ObjectResult
	model string
	seen  prompt.Prompts
}

func (f *fakeStructured) GenerateObject(_ context.Context, p prompt.Prompts, _ map[string]any) ObjectResult {
	f.seen = p
	return f.res
}

func (f *fakeStructured) Model() string { return f.model }

func TestGenerateStructuredSalvagesRawCandidate(t *testing.T) {
	t.Parallel()
	raw := `{"titulo": "Roteiro salvo do erro", "secoes": [{"titulo": "Voos", "itens": ["Reserve o voo direto GRU-LIS cedo."]}]}`
	gen := &fakeStructured{model: "claude", res: ObjectResult{RawCandidate: raw, Err: errors.New("schema mismatch")}}
	m := observability.New()
	o := NewOrchestrator(logger.NewNop(), Settings{Backend: BackendAnthropic, APIKey: "k"}, Deps{Structured: gen, Metrics: m})

	res := o.Generate(context.Background(), contract.LocalePT, prefs())
	if res.Mode != contract.ModeAI || res.Model != "claude" {
		t.Fatalf("res mode=%s model=%s", res.Mode, res.Model)
	}
	if res.Report.Title != "Roteiro salvo do erro" {
		t.Fatalf("title=%q", res.Report.Title)
	}
	if m.AttemptCount("anthropic", "claude", "object", "salvaged") != 1 {
		t.Fatalf("salvage not recorded")
	}
	if gen.seen.System == "" || gen.seen.User == "" {
		t.Fatalf("prompts not passed")
	}
}

func TestGenerateStructuredUnsalvageable(t *testing.T) {
	t.Parallel()
	gen := &fakeStructured{model: "gemini", res: ObjectResult{Err: errors.New("500")}}
	o := NewOrchestrator(logger.NewNop(), Settings{Backend: BackendGemini, APIKey: "k"}, Deps{Structured: gen})
	if res := o.Generate(context.Background(), contract.LocaleEN, prefs()); res.Mode != contract.ModeFallback {
		t.Fatalf("mode=%s", res.Mode)
	}
}

type fakeMessager struct {
	resp   *anthropic.Message
	err    error
	params anthropic.MessageNewParams
}

func (f *fakeMessager) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = body
	return f.resp, f.err
}

func TestAnthropicGeneratorForcesReportTool(t *testing.T) {
	t.Parallel()
	input := mustJSON(t, validReport("Tool generated plan"))
	m := &fakeMessager{resp: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "tool_use", Name: reportToolName, Input: json.RawMessage(input)},
	}}}
	g := NewAnthropicGeneratorWithMessager(m, AnthropicConfig{MaxTokens: 1000})

	res := g.GenerateObject(context.Background(), prompt.Prompts{System: "sys", User: "usr"}, contract.ReportJSONSchema())
	if res.Err != nil {
		t.Fatalf("err=%v", res.Err)
	}
	report, ok := res.Object.(contract.PlannerReport)
	if !ok || report.Title != "Tool generated plan" {
		t.Fatalf("object=%#v", res.Object)
	}
	if g.Model() != string(anthropic.ModelClaudeSonnet4_5) || m.params.MaxTokens != 1000 {
		t.Fatalf("model=%s max=%d", g.Model(), m.params.MaxTokens)
	}
	if len(m.params.Tools) != 1 || m.params.ToolChoice.OfTool == nil || m.params.ToolChoice.OfTool.Name != reportToolName {
		t.Fatalf("tool choice not forced")
	}
}

func TestAnthropicGeneratorInvalidToolInputIsSalvageable(t *testing.T) {
	t.Parallel()
	m := &fakeMessager{resp: &anthropic.Message{Content: []anthropic.ContentBlockUnion{
		{Type: "tool_use", Name: reportToolName, Input: json.RawMessage(`{"title":"X"}`)},
	}}}
	res := NewAnthropicGeneratorWithMessager(m, AnthropicConfig{}).GenerateObject(context.Background(), prompt.Prompts{}, contract.ReportJSONSchema())
	if res.Err == nil || res.RawCandidate == nil || res.Object != nil {
		t.Fatalf("res=%+v", res)
	}
}

func TestAnthropicGeneratorTextOnlyAnswer(t *testing.T) {
	t.Parallel()
	m := &fakeMessager{resp: &anthropic.Message{Content: []anthropic.ContentBlockUnion{{Type: "text", Text: "Here is your plan."}}}}
	res := NewAnthropicGeneratorWithMessager(m, AnthropicConfig{}).GenerateObject(context.Background(), prompt.Prompts{}, contract.ReportJSONSchema())
	if res.Err == nil || res.RawCandidate != "Here is your plan." {
		t.Fatalf("res=%+v", res)
	}
}

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	return f.resp, f.err
}

func geminiText(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: s}}},
	}}}
}

func TestGeminiGeneratorRequestsJSONSchema(t *testing.T) {
	t.Parallel()
	f := &fakeModels{resp: geminiText(mustJSON(t, validReport("Gemini structured plan")))}
	g := NewGeminiGeneratorWithModels(f, GeminiConfig{Temperature: 0.3, MaxTokens: 900})

	res := g.GenerateObject(context.Background(), prompt.Prompts{System: "s", User: "u"}, contract.ReportJSONSchema())
	if res.Err != nil {
		t.Fatalf("err=%v", res.Err)
	}
	if f.model != defaultGeminiModel || f.config.ResponseMIMEType != "application/json" || f.config.ResponseJsonSchema == nil {
		t.Fatalf("config=%+v model=%s", f.config, f.model)
	}
	if f.config.MaxOutputTokens != 900 || f.config.Temperature == nil {
		t.Fatalf("generation params not set")
	}
}

func TestGeminiGeneratorErrors(t *testing.T) {
	t.Parallel()
	f := &fakeModels{err: genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED"}}
	res := NewGeminiGeneratorWithModels(f, GeminiConfig{}).GenerateObject(context.Background(), prompt.Prompts{}, nil)
	if res.Err == nil || !strings.Contains(res.Err.Error(), "429") {
		t.Fatalf("err=%v", res.Err)
	}

	f = &fakeModels{resp: geminiText("```json\n{\"title\":\"X\"}\n```")}
	res = NewGeminiGeneratorWithModels(f, GeminiConfig{}).GenerateObject(context.Background(), prompt.Prompts{}, nil)
	if res.Err == nil || res.RawCandidate == nil {
		t.Fatalf("invalid output should be salvageable: %+v", res)
	}
}

func TestNewBuildsBackends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for _, b := range []Backend{BackendOpenAI, BackendOpenRouter, BackendLocal, BackendMock, BackendAnthropic, BackendDisabled} {
		o, err := New(ctx, logger.NewNop(), Config{Backend: b, APIKey: "k"}, nil, nil)
		if err != nil {
			t.Fatalf("New(%s): %v", b, err)
		}
		if o.Backend() != b {
			t.Fatalf("backend=%s", o.Backend())
		}
	}
	if _, err := New(ctx, logger.NewNop(), Config{Backend: "bogus"}, nil, nil); err == nil {
		t.Fatalf("unknown backend should fail")
	}
}

func TestMockBackendProducesAIReport(t *testing.T) {
	t.Parallel()
	o, err := New(context.Background(), logger.NewNop(), Config{Backend: BackendMock}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res := o.Generate(ctx, contract.LocaleEN, prefs())
	if res.Mode != contract.ModeAI || res.Model != "mock-planner" {
		t.Fatalf("res mode=%s model=%s", res.Mode, res.Model)
	}
}
