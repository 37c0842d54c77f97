package http

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	httpH "github.com/yungbote/travelplanner-backend/internal/http/handlers"
	httpMW "github.com/yungbote/travelplanner-backend/internal/http/middleware"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/fallback"
	"github.com/yungbote/travelplanner-backend/internal/planner/ratelimit"
	"github.com/yungbote/travelplanner-backend/internal/platform/ctxutil"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
	"github.com/yungbote/travelplanner-backend/internal/services"
	"github.com/yungbote/travelplanner-backend/internal/sse"
)

const secret = "router-secret"

type fakePlanner struct {
	calls  int
	userID string
}

func (f *fakePlanner) Generate(ctx context.Context, req contract.GenerateRequest) (services.Generation, error) {
	f.calls++
	if id := ctxutil.GetIdentity(ctx); id != nil {
		f.userID = id.UserID
	}
	return services.Generation{Result: contract.GenerationResult{
		Report: fallback.Synthesize(req.Locale, req.Preferences, fallback.ReasonProviderFailure),
		Mode:   contract.ModeFallback,
	}}, nil
}

func (f *fakePlanner) Stream(ctx context.Context, req contract.GenerateRequest, sink services.StreamSink) error {
	f.calls++
	r := fallback.Filler(req.Locale, req.Preferences)
	_ = sink.Delta(sse.Progress{Title: r.Title, Sections: r.Sections[:1]})
	_ = sink.Delta(sse.Progress{Title: r.Title, Sections: r.Sections[:2]})
	_ = sink.Complete(r, contract.ModeAI, "plan-1")
	sink.EnsureTerminal("internal_error", "unused")
	return nil
}

func token(t *testing.T) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-9",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newTestRouter(t *testing.T, planner services.PlannerService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()
	m := observability.New()
	return NewRouter(RouterConfig{
		Log:             log,
		Metrics:         m,
		MaxRequestBytes: 4 << 10,
		AuthMiddleware:  httpMW.NewAuthMiddleware(log, secret, ""),
		GenerateLimit: httpMW.RateLimit(log, ratelimit.NewMemory(), httpMW.RateLimitConfig{
			Namespace: "generate", Max: 6, Window: time.Minute,
		}, m),
		PlannerHandler: httpH.NewPlannerHandler(log, planner, 0),
		HealthHandler: httpH.NewHealthHandler(map[string]httpH.Pinger{
			"database": httpH.PingFunc(func(context.Context) error { return nil }),
		}, m),
	})
}

const validBody = `{"locale":"en","source":"landing","preferences":{
	"data_ida":"2026-09-10","data_volta":"2026-09-20","flex_dias":2,
	"origens":"GRU","destinos":"LIS, MAD","num_adultos":2,"num_chd":0,"num_bebes":0,
	"preferencia_voo":"direto","horarios_voo":"qualquer","bagagem":"despachada",
	"tolerancia_risco":"media","perfil_hospedagem":"conforto"}}`

func post(r *gin.Engine, path, body, tok string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(nethttp.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"requestId"`
	Code      string `json:"code"`
	Error     string `json:"error"`
	Issues    []struct {
		Field string `json:"field"`
	} `json:"issues"`
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problem {
	t.Helper()
	var p problem
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode problem: %v body=%s", err, rec.Body.String())
	}
	return p
}

func TestGenerateReturnsVersionedReport(t *testing.T) {
	fp := &fakePlanner{}
	r := newTestRouter(t, fp)
	rec := post(r, "/api/planner/generate", validBody, token(t))
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		SchemaVersion string                 `json:"schemaVersion"`
		GeneratedAt   string                 `json:"generatedAt"`
		Report        contract.PlannerReport `json:"report"`
		Mode          string                 `json:"mode"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.SchemaVersion != httpH.SchemaVersion || body.Mode != "fallback" {
		t.Fatalf("body=%+v", body)
	}
	ts, err := time.Parse(time.RFC3339, body.GeneratedAt)
	if err != nil || ts.Location() != time.UTC {
		t.Fatalf("generatedAt=%q err=%v", body.GeneratedAt, err)
	}
	if n := len(body.Report.Sections); n < 4 || n > 8 {
		t.Fatalf("sections=%d", n)
	}
	if fp.userID != "user-9" {
		t.Fatalf("identity not forwarded: %q", fp.userID)
	}
}

func TestGenerateRequiresIdentity(t *testing.T) {
	fp := &fakePlanner{}
	r := newTestRouter(t, fp)
	rec := post(r, "/api/planner/generate", validBody, "")
	if rec.Code != nethttp.StatusUnauthorized {
		t.Fatalf("status=%d", rec.Code)
	}
	p := decodeProblem(t, rec)
	if p.Code != "unauthenticated" || p.Type != "https://errors.planner.dev/unauthenticated" || p.Status != 401 {
		t.Fatalf("problem=%+v", p)
	}
	if fp.calls != 0 {
		t.Fatalf("planner must not run without identity")
	}
}

func TestGenerateInvalidBodyIsProblem(t *testing.T) {
	r := newTestRouter(t, &fakePlanner{})
	body := strings.Replace(validBody, `"data_volta":"2026-09-20"`, `"data_volta":"2026-09-01"`, 1)
	rec := post(r, "/api/planner/generate", body, token(t))
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/problem+json") {
		t.Fatalf("content-type=%q", ct)
	}
	p := decodeProblem(t, rec)
	if p.Code != "invalid_request" || p.Instance != "/api/planner/generate" || p.RequestID == "" || p.Error != p.Detail {
		t.Fatalf("problem=%+v", p)
	}
	found := false
	for _, is := range p.Issues {
		if is.Field == "data_volta" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected data_volta issue: %+v", p.Issues)
	}
}

func TestGenerateRejectsOversizedBody(t *testing.T) {
	r := newTestRouter(t, &fakePlanner{})
	big := strings.Replace(validBody, `"source":"landing"`, `"source":"`+strings.Repeat("x", 8<<10)+`"`, 1)
	rec := post(r, "/api/planner/generate", big, token(t))
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestGenerateRateLimitSkipsPlanner(t *testing.T) {
	fp := &fakePlanner{}
	r := newTestRouter(t, fp)
	tok := token(t)
	for i := 0; i < 6; i++ {
		if rec := post(r, "/api/planner/generate", validBody, tok); rec.Code != nethttp.StatusOK {
			t.Fatalf("request %d status=%d", i+1, rec.Code)
		}
	}
	rec := post(r, "/api/planner/generate", validBody, tok)
	if rec.Code != nethttp.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Fatalf("status=%d retry-after=%q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if fp.calls != 6 {
		t.Fatalf("planner calls=%d want 6", fp.calls)
	}
}

func TestStreamWritesFramesInOrder(t *testing.T) {
	r := newTestRouter(t, &fakePlanner{})
	rec := post(r, "/api/planner/stream", validBody, token(t))
	if rec.Code != nethttp.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%q", ct)
	}

	var types []string
	sc := bufio.NewScanner(rec.Body)
	sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame struct {
			Type   string `json:"type"`
			PlanID string `json:"planId"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			t.Fatalf("frame %q: %v", line, err)
		}
		types = append(types, frame.Type)
		if frame.Type == "complete" && frame.PlanID != "plan-1" {
			t.Fatalf("planId=%q", frame.PlanID)
		}
	}
	if strings.Join(types, ",") != "delta,delta,complete" {
		t.Fatalf("frames=%v", types)
	}
}

func TestStreamInvalidBodyIsProblemNotStream(t *testing.T) {
	r := newTestRouter(t, &fakePlanner{})
	rec := post(r, "/api/planner/stream", `{"locale":"en"`, token(t))
	if rec.Code != nethttp.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("invalid requests must not open a stream")
	}
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(t, &fakePlanner{})
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, path, nil))
		if rec.Code != nethttp.StatusOK {
			t.Fatalf("%s status=%d", path, rec.Code)
		}
	}

	gin.SetMode(gin.TestMode)
	h := httpH.NewHealthHandler(map[string]httpH.Pinger{
		"redis": httpH.PingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
	}, nil)
	engine := gin.New()
	engine.GET("/readyz", h.ReadyCheck)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/readyz", nil))
	if rec.Code != nethttp.StatusServiceUnavailable {
		t.Fatalf("readyz with failing dependency status=%d", rec.Code)
	}
}
