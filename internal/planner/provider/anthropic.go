package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/prompt"
)

const reportToolName = "emit_planner_report"

// AnthropicMessager is the slice of the Messages API the generator calls.
// *anthropic.MessageService satisfies it.
type AnthropicMessager interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// AnthropicGenerator forces a single tool call whose input schema is the
// report schema, so the tool input is the report object.
type AnthropicGenerator struct {
	messages    AnthropicMessager
	model       string
	temperature float64
	maxTokens   int64
}

func NewAnthropicGenerator(cfg AnthropicConfig, httpClient *http.Client) *AnthropicGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// The orchestrator owns the time budget; retries would overrun it.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := anthropic.NewClient(opts...)
	return NewAnthropicGeneratorWithMessager(&client.Messages, cfg)
}

func NewAnthropicGeneratorWithMessager(m AnthropicMessager, cfg AnthropicConfig) *AnthropicGenerator {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicGenerator{messages: m, model: model, temperature: cfg.Temperature, maxTokens: int64(maxTokens)}
}

func (g *AnthropicGenerator) Model() string { return g.model }

func (g *AnthropicGenerator) GenerateObject(ctx context.Context, p prompt.Prompts, schema map[string]any) ObjectResult {
	props, _ := schema["properties"].(map[string]any)
	required := contract.ReportRequiredFields()
	extra := map[string]any{}
	for k, v := range schema {
		switch k {
		case "type", "properties", "required":
			continue
		}
		extra[k] = v
	}

	tool := anthropic.ToolUnionParamOfTool(anthropic.ToolInputSchemaParam{
		Properties:  props,
		Required:    required,
		ExtraFields: extra,
	}, reportToolName)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: p.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
		Tools:      []anthropic.ToolUnionParam{tool},
		ToolChoice: anthropic.ToolChoiceParamOfTool(reportToolName),
	}
	if g.temperature > 0 {
		params.Temperature = anthropic.Float(g.temperature)
	}

	resp, err := g.messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return ObjectResult{Err: fmt.Errorf("anthropic messages: status %d: %w", apiErr.StatusCode, err)}
		}
		return ObjectResult{Err: fmt.Errorf("anthropic messages: %w", err)}
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch block.Type {
		case "tool_use":
			if block.Name != reportToolName || len(block.Input) == 0 {
				continue
			}
			raw := json.RawMessage(block.Input)
			report, verr := contract.ValidateReport(raw)
			if verr != nil {
				return ObjectResult{RawCandidate: raw, Err: fmt.Errorf("tool input failed validation: %w", verr)}
			}
			return ObjectResult{Object: report}
		case "text":
			text.WriteString(block.Text)
		}
	}
	if s := strings.TrimSpace(text.String()); s != "" {
		return ObjectResult{RawCandidate: s, Err: errors.New("model answered without calling the report tool")}
	}
	return ObjectResult{Err: fmt.Errorf("empty response (stop_reason=%s)", resp.StopReason)}
}
