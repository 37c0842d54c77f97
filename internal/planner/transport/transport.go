// Package transport drives a chat-completions engine across candidate models
// and response formats under one shrinking time budget.
package transport

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/travelplanner-backend/internal/inference/engine"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/normalize"
	"github.com/yungbote/travelplanner-backend/internal/planner/prompt"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Attempt outcomes reported in metrics.
const (
	OutcomeNormalized = "normalized"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"
	OutcomeTimeout    = "timeout"
	OutcomeSkipped    = "skipped"
)

type Config struct {
	Total          time.Duration
	JSONAttemptCap time.Duration
	TextAttemptCap time.Duration
	Reserve        time.Duration
	MinTextBudget  time.Duration

	Temperature float64
	MaxTokens   int
}

func DefaultConfig() Config {
	return Config{
		Total:          95 * time.Second,
		JSONAttemptCap: 35 * time.Second,
		TextAttemptCap: 25 * time.Second,
		Reserve:        3 * time.Second,
		MinTextBudget:  20 * time.Second,
		Temperature:    0.4,
		MaxTokens:      2200,
	}
}

type Request struct {
	Locale   contract.Locale
	Prompts  prompt.Prompts
	Models   []string
	Fallback contract.PlannerReport

	// OnText, when set, streams the first JSON attempt and receives the
	// accumulated text after every upstream chunk.
	OnText func(accumulated string)
}

type Result struct {
	Report contract.PlannerReport
	Model  string
	Format Format
	Stage  normalize.Stage
}

type Transport struct {
	log     *logger.Logger
	eng     engine.Engine
	cfg     Config
	backend string
	metrics *observability.Metrics
	now     func() time.Time
}

type Option func(*Transport)

func WithClock(now func() time.Time) Option {
	return func(t *Transport) { t.now = now }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

func New(baseLog *logger.Logger, eng engine.Engine, backend string, cfg Config, opts ...Option) *Transport {
	t := &Transport{
		log:     baseLog.With("component", "PlannerTransport", "backend", backend),
		eng:     eng,
		cfg:     cfg,
		backend: backend,
		now:     time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Run tries each model in order, JSON format first, and returns the first
// normalized report. Attempts run sequentially against a single budget; false
// means every candidate failed or the budget ran out.
func (t *Transport) Run(ctx context.Context, req Request) (Result, bool) {
	budget := NewBudget(t.cfg.Total)
	messages := []engine.Message{
		{Role: "system", Content: req.Prompts.System},
		{Role: "user", Content: req.Prompts.User},
	}
	schema := &engine.JSONSchema{Name: contract.SchemaName, Schema: contract.ReportJSONSchema()}

	for i, model := range req.Models {
		if ctx.Err() != nil {
			return Result{}, false
		}

		limit := budget.Allot(t.cfg.JSONAttemptCap, t.cfg.Reserve)
		if limit <= 0 {
			t.log.Warn("generation budget exhausted", "model", model, "spent_ms", budget.Spent().Milliseconds())
			t.metrics.IncAttempt(t.backend, model, string(FormatJSON), OutcomeSkipped)
			return Result{}, false
		}
		var onText func(string)
		if i == 0 {
			onText = req.OnText
		}
		opts := engine.GenerateOptions{Temperature: t.cfg.Temperature, MaxTokens: t.cfg.MaxTokens, JSONSchema: schema}
		if r, ok := t.attempt(ctx, budget, limit, model, FormatJSON, messages, opts, onText, req); ok {
			return r, true
		}

		if ctx.Err() != nil {
			return Result{}, false
		}
		limit = budget.Allot(t.cfg.TextAttemptCap, t.cfg.Reserve)
		if limit < t.cfg.MinTextBudget {
			t.log.Debug("skipping text attempt", "model", model, "allotted_ms", limit.Milliseconds())
			t.metrics.IncAttempt(t.backend, model, string(FormatText), OutcomeSkipped)
			continue
		}
		opts.JSONSchema = nil
		if r, ok := t.attempt(ctx, budget, limit, model, FormatText, messages, opts, nil, req); ok {
			return r, true
		}
	}
	return Result{}, false
}

func (t *Transport) attempt(
	ctx context.Context,
	budget *Budget,
	limit time.Duration,
	model string,
	format Format,
	messages []engine.Message,
	opts engine.GenerateOptions,
	onText func(string),
	req Request,
) (Result, bool) {
	ctx, span := observability.Tracer().Start(ctx, "planner.transport.attempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("planner.backend", t.backend),
		attribute.String("planner.model", model),
		attribute.String("planner.format", string(format)),
		attribute.Int64("planner.allotted_ms", limit.Milliseconds()),
	)

	attemptCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	start := t.now()
	var (
		text string
		err  error
	)
	if onText != nil {
		var acc strings.Builder
		text, err = t.eng.StreamText(attemptCtx, model, messages, opts, func(delta string) {
			acc.WriteString(delta)
			onText(acc.String())
		})
	} else {
		text, err = t.eng.GenerateText(attemptCtx, model, messages, opts)
	}
	elapsed := t.now().Sub(start)
	budget.Spend(elapsed)

	log := t.log.With("model", model, "format", format, "elapsed_ms", elapsed.Milliseconds())
	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		t.metrics.IncAttempt(t.backend, model, string(format), outcome)
		log.Warn("generation attempt failed", "outcome", outcome, "error", err)
		return Result{}, false
	}

	report, stage, ok := normalize.NormalizeStage(text, req.Fallback, req.Locale)
	if !ok {
		span.SetStatus(codes.Error, OutcomeInvalid)
		t.metrics.IncAttempt(t.backend, model, string(format), OutcomeInvalid)
		log.Warn("generation attempt produced no usable report", "chars", len(text))
		return Result{}, false
	}

	span.SetAttributes(attribute.String("planner.stage", string(stage)))
	t.metrics.IncAttempt(t.backend, model, string(format), OutcomeNormalized)
	log.Info("generation attempt succeeded", "stage", stage)
	return Result{Report: report, Model: model, Format: format, Stage: stage}, true
}
