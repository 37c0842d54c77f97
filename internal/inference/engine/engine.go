package engine

import "context"

type Message struct {
	Role    string
	Content string
}

type JSONSchema struct {
	Name   string
	Schema map[string]any
	Strict bool
}

type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
	JSONSchema  *JSONSchema
}

// Engine is a chat-completions style text generator. Deadlines come from ctx;
// implementations must not retry on their own.
type Engine interface {
	GenerateText(ctx context.Context, model string, messages []Message, opts GenerateOptions) (string, error)
	StreamText(ctx context.Context, model string, messages []Message, opts GenerateOptions, onDelta func(delta string)) (full string, err error)
}
