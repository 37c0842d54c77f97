package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/prompt"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiModels is the part of genai.Models the generator needs.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

type GeminiGenerator struct {
	models      GeminiModels
	model       string
	temperature float64
	maxTokens   int32
}

func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig, httpClient *http.Client) (*GeminiGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return NewGeminiGeneratorWithModels(cli.Models, cfg), nil
}

func NewGeminiGeneratorWithModels(m GeminiModels, cfg GeminiConfig) *GeminiGenerator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGenerator{models: m, model: model, temperature: cfg.Temperature, maxTokens: int32(cfg.MaxTokens)}
}

func (g *GeminiGenerator) Model() string { return g.model }

func (g *GeminiGenerator) GenerateObject(ctx context.Context, p prompt.Prompts, schema map[string]any) ObjectResult {
	config := &genai.GenerateContentConfig{
		SystemInstruction:  genai.NewContentFromText(p.System, genai.RoleUser),
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: schema,
	}
	if g.temperature > 0 {
		config.Temperature = genai.Ptr(float32(g.temperature))
	}
	if g.maxTokens > 0 {
		config.MaxOutputTokens = g.maxTokens
	}

	resp, err := g.models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(p.User, genai.RoleUser),
	}, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return ObjectResult{Err: fmt.Errorf("gemini generate: status %d %s: %w", apiErr.Code, apiErr.Status, err)}
		}
		return ObjectResult{Err: fmt.Errorf("gemini generate: %w", err)}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return ObjectResult{Err: errors.New("gemini returned no text")}
	}
	report, verr := contract.ValidateReport([]byte(text))
	if verr != nil {
		return ObjectResult{RawCandidate: text, Err: fmt.Errorf("response failed validation: %w", verr)}
	}
	return ObjectResult{Object: report}
}
