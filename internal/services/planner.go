package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/travelplanner-backend/internal/planner/cache"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/postgen"
	"github.com/yungbote/travelplanner-backend/internal/platform/apierr"
	"github.com/yungbote/travelplanner-backend/internal/platform/ctxutil"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
	"github.com/yungbote/travelplanner-backend/internal/sse"
)

// ReportGenerator is satisfied by provider.Orchestrator.
type ReportGenerator interface {
	Generate(ctx context.Context, locale contract.Locale, prefs contract.TravelPreferences) contract.GenerationResult
	Stream(ctx context.Context, locale contract.Locale, prefs contract.TravelPreferences, onText func(accumulated string)) contract.GenerationResult
}

// StreamSink receives the frames of one streamed generation.
type StreamSink interface {
	Delta(p sse.Progress) error
	Complete(report contract.PlannerReport, mode contract.Mode, planID string) error
	EnsureTerminal(code, message string)
}

// Generation is the outcome of a synchronous request.
type Generation struct {
	Result    contract.GenerationResult
	FromCache bool
}

type PlannerService interface {
	Generate(ctx context.Context, req contract.GenerateRequest) (Generation, error)
	Stream(ctx context.Context, req contract.GenerateRequest, sink StreamSink) error
}

type plannerService struct {
	log       *logger.Logger
	generator ReportGenerator
	cache     *cache.Cache
	postgen   *postgen.Pipeline
	budget    time.Duration
	flight    singleflight.Group
}

const (
	// persistTimeout bounds the synchronous plan write that precedes a
	// stream's complete event.
	persistTimeout = 5 * time.Second
	finishTimeout  = 15 * time.Second
)

// NewPlannerService composes cache, generator and post-generation steps.
// reportCache may be nil, which disables caching. budget bounds coalesced
// generations once they are detached from the caller.
func NewPlannerService(log *logger.Logger, generator ReportGenerator, reportCache *cache.Cache, pipeline *postgen.Pipeline, budget time.Duration) PlannerService {
	serviceLog := log.With("service", "PlannerService")
	if budget <= 0 {
		budget = 95 * time.Second
	}
	return &plannerService{
		log:       serviceLog,
		generator: generator,
		cache:     reportCache,
		postgen:   pipeline,
		budget:    budget,
	}
}

func (ps *plannerService) input(ctx context.Context, req contract.GenerateRequest, prefs contract.TravelPreferences, channel, key string) postgen.Input {
	in := postgen.Input{
		RequestID:   ctxutil.RequestID(ctx),
		Locale:      req.Locale.Normalize(),
		Source:      req.Source,
		Channel:     channel,
		Preferences: prefs,
		CacheKey:    key,
	}
	if id := ctxutil.GetIdentity(ctx); id != nil {
		in.UserID = id.UserID
	}
	return in
}

func (ps *plannerService) lookup(ctx context.Context, key string) (contract.GenerationResult, bool) {
	if ps.cache == nil {
		return contract.GenerationResult{}, false
	}
	e, ok := ps.cache.Get(ctx, key)
	if !ok {
		return contract.GenerationResult{}, false
	}
	return contract.GenerationResult{Report: e.Report, Mode: contract.ModeAI, Model: e.Model}, true
}

func (ps *plannerService) Generate(ctx context.Context, req contract.GenerateRequest) (Generation, error) {
	locale, prefs, err := checkRequest(req)
	if err != nil {
		return Generation{}, err
	}
	key := cache.HashFor(locale, prefs)
	in := ps.input(ctx, req, prefs, postgen.ChannelSync, key)

	if res, ok := ps.lookup(ctx, key); ok {
		in.Result, in.FromCache = res, true
		ps.postgen.Background(ctx, in)
		return Generation{Result: res, FromCache: true}, nil
	}

	// Identical in-flight requests share one generation. It runs detached
	// from any single caller so one disconnect does not fail the others.
	ch := ps.flight.DoChan(key, func() (any, error) {
		gctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ps.budget)
		defer cancel()
		return ps.generator.Generate(gctx, locale, prefs), nil
	})
	select {
	case <-ctx.Done():
		return Generation{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Generation{}, apierr.Internal(r.Err)
		}
		res, ok := r.Val.(contract.GenerationResult)
		if !ok {
			return Generation{}, apierr.Internal(fmt.Errorf("unexpected generation result %T", r.Val))
		}
		if r.Shared {
			ps.log.Debug("generation shared with an in-flight request", "request_id", in.RequestID)
		}
		in.Result = res
		ps.postgen.Background(ctx, in)
		return Generation{Result: res}, nil
	}
}

// Stream writes deltas and exactly one terminal event to sink, whatever
// happens. The returned error is the request error that was also sent as the
// terminal error event.
func (ps *plannerService) Stream(ctx context.Context, req contract.GenerateRequest, sink StreamSink) error {
	requestID := ctxutil.RequestID(ctx)
	defer func() {
		if r := recover(); r != nil {
			ps.log.Error("stream generation panicked", "request_id", requestID, "panic", r)
		}
		sink.EnsureTerminal(apierr.CodeInternal, "generation failed")
	}()

	locale, prefs, err := checkRequest(req)
	if err != nil {
		ae := apierr.From(err)
		sink.EnsureTerminal(ae.Code, ae.Error())
		return err
	}
	key := cache.HashFor(locale, prefs)
	in := ps.input(ctx, req, prefs, postgen.ChannelStream, key)

	if res, ok := ps.lookup(ctx, key); ok {
		in.Result, in.FromCache = res, true
		if err := sink.Complete(res.Report, res.Mode, ""); err != nil {
			ps.log.Debug("complete event not delivered", "request_id", in.RequestID, "error", err)
		}
		ps.finish(ctx, in)
		return nil
	}

	tracker := &sse.DeltaTracker{}
	res := ps.generator.Stream(ctx, locale, prefs, func(accumulated string) {
		p, ok := tracker.Feed(accumulated)
		if !ok {
			return
		}
		if err := sink.Delta(p); err != nil {
			ps.log.Debug("delta not delivered", "request_id", in.RequestID, "error", err)
		}
	})
	in.Result = res

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	planID := ps.postgen.Persist(pctx, in)
	cancel()

	if err := sink.Complete(res.Report, res.Mode, planID); err != nil {
		ps.log.Debug("complete event not delivered", "request_id", in.RequestID, "error", err)
	}
	ps.log.Info("stream finished",
		"request_id", in.RequestID,
		"mode", res.Mode,
		"model", res.Model,
		"deltas", tracker.Sent(),
	)

	ps.finish(ctx, in)
	return nil
}

// finish runs the remaining post-generation steps after the terminal event,
// detached from the request so a closed connection does not cut them short.
func (ps *plannerService) finish(ctx context.Context, in postgen.Input) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	ps.postgen.Finish(fctx, in)
}

func checkRequest(req contract.GenerateRequest) (contract.Locale, contract.TravelPreferences, error) {
	locale := req.Locale.Normalize()
	if locale != contract.LocalePT && locale != contract.LocaleEN {
		return "", contract.TravelPreferences{}, apierr.BadRequest(&contract.ValidationError{Issues: []contract.FieldIssue{{
			Field: "locale", Rule: "oneof", Message: "locale must be one of pt, en",
		}}})
	}
	prefs, err := contract.CheckPreferences(req.Preferences)
	if err != nil {
		return "", contract.TravelPreferences{}, apierr.BadRequest(err)
	}
	return locale, prefs, nil
}
