package oaihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/travelplanner-backend/internal/inference/engine"
)

// Schema modes for JSON-constrained requests.
const (
	// SchemaModeJSONSchema sends response_format {type: json_schema}.
	SchemaModeJSONSchema = "json_schema"
	// SchemaModeGuided sends vLLM/SGLang guided_json.
	SchemaModeGuided = "guided_json"
	// SchemaModePrompt appends the schema as a system instruction.
	SchemaModePrompt = "prompt"
)

type Config struct {
	BaseURL             string
	APIKey              string
	ChatCompletionsPath string

	// SchemaMode is one of the SchemaMode* constants. Defaults to json_schema.
	SchemaMode     string
	MaxPromptBytes int

	// Headers are sent on every request (OpenRouter attribution headers, for example).
	Headers map[string]string
}

type Engine struct {
	baseURL string
	apiKey  string

	chatCompletionsPath string

	schemaMode     string
	maxPromptBytes int
	headers        map[string]string

	httpClient *http.Client
}

func New(cfg Config) (*Engine, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("oai_http: base_url required")
	}

	chatPath := strings.TrimSpace(cfg.ChatCompletionsPath)
	if chatPath == "" {
		chatPath = "/v1/chat/completions"
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.SchemaMode))
	switch mode {
	case "":
		mode = SchemaModeJSONSchema
	case SchemaModeJSONSchema, SchemaModeGuided, SchemaModePrompt:
	default:
		return nil, fmt.Errorf("oai_http: unknown schema mode %q", cfg.SchemaMode)
	}

	maxPromptBytes := cfg.MaxPromptBytes
	if maxPromptBytes <= 0 {
		maxPromptBytes = 64 << 10
	}

	// No client-level timeout: every call is bounded by its context deadline.
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Engine{
		baseURL:             baseURL,
		apiKey:              strings.TrimSpace(cfg.APIKey),
		chatCompletionsPath: chatPath,
		schemaMode:          mode,
		maxPromptBytes:      maxPromptBytes,
		headers:             cfg.Headers,
		httpClient:          &http.Client{Transport: tr},
	}, nil
}

// NewWithHTTPClient is intended for tests; it avoids network access by using a custom RoundTripper.
func NewWithHTTPClient(cfg Config, httpClient *http.Client) (*Engine, error) {
	e, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		e.httpClient = httpClient
	}
	return e, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`

	ResponseFormat map[string]any `json:"response_format,omitempty"`
	GuidedJSON     any            `json:"guided_json,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content,omitempty"`
		} `json:"message,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
}

type chatCompletionStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content,omitempty"`
		} `json:"delta,omitempty"`
		Text string `json:"text,omitempty"`
	} `json:"choices"`
	Error any `json:"error,omitempty"`
}

// GenerateText issues one chat completion. With a JSON schema, fenced output
// is unwrapped but not validated; callers normalize the text themselves.
func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	chatMsgs := toChatMessages(messages)
	if len(chatMsgs) == 0 {
		return "", errors.New("no messages")
	}

	reqBody := e.buildChatRequest(model, chatMsgs, opts, false)

	var resp chatCompletionResponse
	if err := e.doJSON(ctx, http.MethodPost, e.chatCompletionsPath, reqBody, &resp, "application/json"); err != nil {
		return "", err
	}

	text := extractChatText(resp)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	if opts.JSONSchema != nil {
		return sanitizeJSONText(text), nil
	}
	return text, nil
}

func (e *Engine) StreamText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions, onDelta func(delta string)) (string, error) {
	chatMsgs := toChatMessages(messages)
	if len(chatMsgs) == 0 {
		return "", errors.New("no messages")
	}

	reqBody := e.buildChatRequest(model, chatMsgs, opts, true)

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+e.chatCompletionsPath, &buf)
	if err != nil {
		return "", err
	}
	e.setHeaders(req, "application/json", "text/event-stream")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return "", &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var full strings.Builder
	err = streamSSE(resp.Body, func(_ string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			return nil
		}

		var chunk chatCompletionStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if chunk.Error != nil {
			b, _ := json.Marshal(chunk.Error)
			return fmt.Errorf("upstream stream error: %s", string(b))
		}

		for _, c := range chunk.Choices {
			delta := c.Delta.Content
			if delta == "" {
				delta = c.Text
			}
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if strings.TrimSpace(full.String()) == "" {
		return "", ErrEmptyCompletion
	}
	return full.String(), nil
}

func (e *Engine) buildChatRequest(model string, messages []chatMessage, opts engine.GenerateOptions, stream bool) chatCompletionRequest {
	req := chatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      stream,
	}

	s := opts.JSONSchema
	if s == nil {
		return req
	}

	switch e.schemaMode {
	case SchemaModeGuided:
		req.ResponseFormat = map[string]any{"type": "json_object"}
		req.GuidedJSON = s.Schema
	case SchemaModePrompt:
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: e.jsonSchemaPrompt(s)})
	default:
		req.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   s.Name,
				"schema": s.Schema,
				"strict": s.Strict,
			},
		}
	}
	return req
}

func (e *Engine) jsonSchemaPrompt(s *engine.JSONSchema) string {
	var schemaText string
	if s.Schema != nil {
		if b, err := json.Marshal(s.Schema); err == nil && len(b) <= e.maxPromptBytes {
			schemaText = string(b)
		}
	}

	var b strings.Builder
	b.WriteString("Return ONLY a valid JSON value that conforms to the provided JSON Schema. Do not include markdown or commentary.\n")
	if name := strings.TrimSpace(s.Name); name != "" {
		b.WriteString("Schema name: ")
		b.WriteString(name)
		b.WriteString("\n")
	}
	if schemaText != "" {
		b.WriteString("Schema:\n")
		b.WriteString(schemaText)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func toChatMessages(messages []engine.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		role := strings.TrimSpace(m.Role)
		content := strings.TrimSpace(m.Content)
		if role == "" || content == "" {
			continue
		}
		out = append(out, chatMessage{Role: role, Content: content})
	}
	return out
}

func extractChatText(resp chatCompletionResponse) string {
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			return c.Message.Content
		}
		if strings.TrimSpace(c.Text) != "" {
			return c.Text
		}
	}
	return ""
}

func sanitizeJSONText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	// Strip leading ```lang and trailing ```
	firstNL := strings.IndexByte(s, '\n')
	if firstNL == -1 {
		return strings.TrimSpace(strings.Trim(s, "`"))
	}
	s = s[firstNL+1:]

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func (e *Engine) setHeaders(req *http.Request, contentType string, accept string) {
	if strings.TrimSpace(contentType) != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if strings.TrimSpace(accept) != "" {
		req.Header.Set("Accept", accept)
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	for k, v := range e.headers {
		if strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}
}

func (e *Engine) doJSON(ctx context.Context, method string, path string, body any, out any, accept string) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, &buf)
	if err != nil {
		return err
	}
	e.setHeaders(req, "application/json", accept)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
