package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/yungbote/travelplanner-backend/internal/inference/engine"
	"github.com/yungbote/travelplanner-backend/internal/inference/engine/mock"
	"github.com/yungbote/travelplanner-backend/internal/inference/engine/oaihttp"
	"github.com/yungbote/travelplanner-backend/internal/observability"
	"github.com/yungbote/travelplanner-backend/internal/planner/transport"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

type Config struct {
	Backend       Backend
	Model         string
	FallbackModel string
	BaseURL       string
	APIKey        string
	// SchemaMode selects how the JSON attempt constrains output on
	// chat-completions backends. Empty picks the backend default.
	SchemaMode string
	// Referer and Title identify the app to OpenRouter.
	Referer string
	Title   string

	Transport transport.Config
}

type backendDefaults struct {
	baseURL       string
	model         string
	fallbackModel string
	schemaMode    string
}

var defaultsByBackend = map[Backend]backendDefaults{
	BackendOpenAI:     {baseURL: "https://api.openai.com", model: "gpt-4o", fallbackModel: "gpt-4o-mini", schemaMode: oaihttp.SchemaModeJSONSchema},
	BackendOpenRouter: {baseURL: "https://openrouter.ai/api", model: "openai/gpt-4o", fallbackModel: "openai/gpt-4o-mini", schemaMode: oaihttp.SchemaModeJSONSchema},
	BackendLocal:      {baseURL: "http://localhost:8000", model: "local-model", schemaMode: oaihttp.SchemaModeGuided},
	BackendMock:       {model: "mock-planner"},
	BackendAnthropic:  {},
	BackendGemini:     {model: defaultGeminiModel},
}

// New builds an orchestrator for cfg.Backend. A credentialed backend with no
// key still yields an orchestrator; it serves missing_api_key fallbacks.
func New(ctx context.Context, baseLog *logger.Logger, cfg Config, metrics *observability.Metrics, httpClient *http.Client) (*Orchestrator, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendOpenAI
	}
	if _, ok := ParseBackend(string(cfg.Backend)); !ok {
		return nil, fmt.Errorf("unknown planner backend %q", cfg.Backend)
	}
	if cfg.Transport.Total <= 0 {
		cfg.Transport = transport.DefaultConfig()
	}
	d := defaultsByBackend[cfg.Backend]
	model := firstNonEmpty(cfg.Model, d.model)
	fallbackModel := firstNonEmpty(cfg.FallbackModel, d.fallbackModel)

	settings := Settings{
		Backend:       cfg.Backend,
		Model:         model,
		FallbackModel: fallbackModel,
		APIKey:        cfg.APIKey,
		Budget:        cfg.Transport.Total,
	}
	deps := Deps{Metrics: metrics}
	hasKey := strings.TrimSpace(cfg.APIKey) != ""

	switch cfg.Backend {
	case BackendDisabled:
	case BackendAnthropic:
		if hasKey {
			deps.Structured = NewAnthropicGenerator(AnthropicConfig{
				APIKey:      cfg.APIKey,
				BaseURL:     cfg.BaseURL,
				Model:       model,
				Temperature: cfg.Transport.Temperature,
				MaxTokens:   cfg.Transport.MaxTokens,
			}, httpClient)
		}
	case BackendGemini:
		if hasKey {
			g, err := NewGeminiGenerator(ctx, GeminiConfig{
				APIKey:      cfg.APIKey,
				BaseURL:     cfg.BaseURL,
				Model:       model,
				Temperature: cfg.Transport.Temperature,
				MaxTokens:   cfg.Transport.MaxTokens,
			}, httpClient)
			if err != nil {
				return nil, err
			}
			deps.Structured = g
		}
	default:
		var eng engine.Engine
		if cfg.Backend == BackendMock {
			eng = mock.New()
		} else {
			headers := map[string]string{}
			if cfg.Backend == BackendOpenRouter {
				if cfg.Referer != "" {
					headers["HTTP-Referer"] = cfg.Referer
				}
				if cfg.Title != "" {
					headers["X-Title"] = cfg.Title
				}
			}
			oaiCfg := oaihttp.Config{
				BaseURL:    firstNonEmpty(cfg.BaseURL, d.baseURL),
				APIKey:     cfg.APIKey,
				SchemaMode: firstNonEmpty(cfg.SchemaMode, d.schemaMode),
				Headers:    headers,
			}
			var (
				e   *oaihttp.Engine
				err error
			)
			if httpClient != nil {
				e, err = oaihttp.NewWithHTTPClient(oaiCfg, httpClient)
			} else {
				e, err = oaihttp.New(oaiCfg)
			}
			if err != nil {
				return nil, fmt.Errorf("%s engine: %w", cfg.Backend, err)
			}
			eng = e
		}
		deps.Transport = transport.New(baseLog, eng, string(cfg.Backend), cfg.Transport, transport.WithMetrics(metrics))
	}

	baseLog.Info("planner provider configured",
		"backend", cfg.Backend,
		"model", model,
		"fallback_model", fallbackModel,
		"has_api_key", hasKey,
	)
	return NewOrchestrator(baseLog, settings, deps), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
