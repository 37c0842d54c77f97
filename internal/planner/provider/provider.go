// Package provider turns preferences into a GenerationResult. It never
// returns an error: every failure degrades to a synthesized fallback report.
package provider

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/fallback"
	"github.com/yungbote/travelplanner-backend/internal/planner/normalize"
	"github.com/yungbote/travelplanner-backend/internal/planner/prompt"
	"github.com/yungbote/travelplanner-backend/internal/planner/transport"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type Backend string

const (
	BackendOpenAI     Backend = "openai"
	BackendOpenRouter Backend = "openrouter"
	BackendLocal      Backend = "local"
	BackendAnthropic  Backend = "anthropic"
	BackendGemini     Backend = "gemini"
	BackendMock       Backend = "mock"
	BackendDisabled   Backend = "disabled"
)

func ParseBackend(s string) (Backend, bool) {
	b := Backend(strings.ToLower(strings.TrimSpace(s)))
	switch b {
	case BackendOpenAI, BackendOpenRouter, BackendLocal, BackendAnthropic, BackendGemini, BackendMock, BackendDisabled:
		return b, true
	}
	return "", false
}

// NeedsKey reports whether the backend cannot run without an API key.
func (b Backend) NeedsKey() bool {
	switch b {
	case BackendOpenAI, BackendOpenRouter, BackendAnthropic, BackendGemini:
		return true
	}
	return false
}

// Structured backends return a schema-shaped object in a single call.
func (b Backend) Structured() bool {
	return b == BackendAnthropic || b == BackendGemini
}

// ObjectResult is the outcome of a structured-generation call. When the API
// produced output that failed its own schema checks, RawCandidate carries
// that output so it can still be repaired.
type ObjectResult struct {
	Object       any
	RawCandidate any
	Err          error
}

type StructuredGenerator interface {
	GenerateObject(ctx context.Context, p prompt.Prompts, schema map[string]any) ObjectResult
	Model() string
}

type Settings struct {
	Backend       Backend
	Model         string
	FallbackModel string
	APIKey        string
	// Budget bounds structured calls; manual transport carries its own.
	Budget time.Duration
}

type Deps struct {
	Structured StructuredGenerator
	Transport  *transport.Transport
	Metrics    *observability.Metrics
}

type Orchestrator struct {
	log        *logger.Logger
	settings   Settings
	structured StructuredGenerator
	transport  *transport.Transport
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewOrchestrator(baseLog *logger.Logger, settings Settings, deps Deps) *Orchestrator {
	if settings.Budget <= 0 {
		settings.Budget = transport.DefaultConfig().Total
	}
	return &Orchestrator{
		log:        baseLog.With("service", "PlannerOrchestrator", "backend", settings.Backend),
		settings:   settings,
		structured: deps.Structured,
		transport:  deps.Transport,
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

func (o *Orchestrator) Backend() Backend { return o.settings.Backend }

// Budget is the wall-clock bound of one generation.
func (o *Orchestrator) Budget() time.Duration { return o.settings.Budget }

// Candidates lists models in attempt order: the secondary model first, since
// it is usually the faster one, then the primary. Duplicates are dropped.
func Candidates(primary, secondary string) []string {
	var out []string
	for _, m := range []string{secondary, primary} {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == m {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, m)
		}
	}
	return out
}

func (o *Orchestrator) Generate(ctx context.Context, locale contract.Locale, prefs contract.TravelPreferences) contract.GenerationResult {
	return o.run(ctx, locale, prefs, nil)
}

// Stream is Generate with progress: onText receives the accumulated raw text
// of the first streamed attempt. Structured backends never call it.
func (o *Orchestrator) Stream(ctx context.Context, locale contract.Locale, prefs contract.TravelPreferences, onText func(accumulated string)) contract.GenerationResult {
	if onText == nil {
		onText = func(string) {}
	}
	return o.run(ctx, locale, prefs, onText)
}

func (o *Orchestrator) run(ctx context.Context, locale contract.Locale, prefs contract.TravelPreferences, onText func(string)) contract.GenerationResult {
	locale = locale.Normalize()
	start := o.now()
	ctx, span := observability.Tracer().Start(ctx, "planner.generate")
	defer span.End()

	res := o.generate(ctx, locale, prefs, onText)

	span.SetAttributes(
		attribute.String("planner.backend", string(o.settings.Backend)),
		attribute.String("planner.mode", string(res.Mode)),
		attribute.String("planner.model", res.Model),
	)
	o.metrics.ObserveGeneration(string(o.settings.Backend), string(res.Mode), o.now().Sub(start))
	return res
}

func (o *Orchestrator) generate(ctx context.Context, locale contract.Locale, prefs contract.TravelPreferences, onText func(string)) contract.GenerationResult {
	backend := o.settings.Backend
	switch {
	case backend == BackendDisabled:
		return o.fallback(locale, prefs, fallback.ReasonProviderFailure)
	case backend.NeedsKey() && strings.TrimSpace(o.settings.APIKey) == "":
		o.log.Warn("no API key configured, serving fallback")
		return o.fallback(locale, prefs, fallback.ReasonMissingAPIKey)
	}

	filler := fallback.Filler(locale, prefs)
	opts := prompt.Options{}
	if onText != nil {
		opts.SectionOrder = fallback.SectionTitles(locale)
	}
	prompts := prompt.Build(locale, prefs, opts)

	if backend.Structured() {
		if o.structured == nil {
			return o.fallback(locale, prefs, fallback.ReasonProviderFailure)
		}
		if r, ok := o.structuredAttempt(ctx, locale, prompts, filler); ok {
			return contract.GenerationResult{Report: r, Mode: contract.ModeAI, Model: o.structured.Model()}
		}
		return o.fallback(locale, prefs, fallback.ReasonProviderFailure)
	}

	if o.transport == nil {
		return o.fallback(locale, prefs, fallback.ReasonProviderFailure)
	}
	res, ok := o.transport.Run(ctx, transport.Request{
		Locale:   locale,
		Prompts:  prompts,
		Models:   Candidates(o.settings.Model, o.settings.FallbackModel),
		Fallback: filler,
		OnText:   onText,
	})
	if !ok {
		return o.fallback(locale, prefs, fallback.ReasonProviderFailure)
	}
	return contract.GenerationResult{Report: res.Report, Mode: contract.ModeAI, Model: res.Model}
}

func (o *Orchestrator) structuredAttempt(ctx context.Context, locale contract.Locale, prompts prompt.Prompts, filler contract.PlannerReport) (contract.PlannerReport, bool) {
	ctx, cancel := context.WithTimeout(ctx, o.settings.Budget)
	defer cancel()

	res := o.structured.GenerateObject(ctx, prompts, contract.ReportJSONSchema())
	model := o.structured.Model()
	if res.Err == nil {
		if r, ok := normalize.Normalize(res.Object, filler, locale); ok {
			o.metrics.IncAttempt(string(o.settings.Backend), model, "object", transport.OutcomeNormalized)
			return r, true
		}
		o.log.Warn("structured object could not be normalized", "model", model)
	} else {
		o.log.Warn("structured generation failed", "model", model, "error", res.Err, "salvageable", res.RawCandidate != nil)
	}

	if res.RawCandidate != nil {
		if r, ok := normalize.Normalize(res.RawCandidate, filler, locale); ok {
			o.log.Info("salvaged structured output from failed attempt", "model", model)
			o.metrics.IncAttempt(string(o.settings.Backend), model, "object", "salvaged")
			return r, true
		}
	}
	o.metrics.IncAttempt(string(o.settings.Backend), model, "object", transport.OutcomeInvalid)
	return contract.PlannerReport{}, false
}

func (o *Orchestrator) fallback(locale contract.Locale, prefs contract.TravelPreferences, reason fallback.Reason) contract.GenerationResult {
	return contract.GenerationResult{
		Report: fallback.Synthesize(locale, prefs, reason),
		Mode:   contract.ModeFallback,
	}
}
