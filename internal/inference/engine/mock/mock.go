package mock

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/travelplanner-backend/internal/inference/engine"
)

// Engine is a deterministic offline engine for development. JSON-schema
// requests get a fixed, contract-shaped report; plain requests get prose.
type Engine struct {
	// Delay between streamed chunks.
	ChunkDelay time.Duration
}

func New() *Engine {
	return &Engine{}
}

func (e *Engine) GenerateText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ref := fingerprint(model, messages)

	if opts.JSONSchema != nil {
		b, err := json.Marshal(report(ref))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return fmt.Sprintf("Offline plan %s. Compare direct and one-stop fares before committing miles. "+
		"Book refundable lodging close to public transport. Keep digital copies of every travel document. "+
		"Check visa and entry rules again a week before departure.", ref), nil
}

func (e *Engine) StreamText(ctx context.Context, model string, messages []engine.Message, opts engine.GenerateOptions, onDelta func(delta string)) (string, error) {
	full, err := e.GenerateText(ctx, model, messages, opts)
	if err != nil {
		return "", err
	}
	if onDelta == nil {
		return full, nil
	}
	const chunk = 24
	for i := 0; i < len(full); i += chunk {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		end := i + chunk
		if end > len(full) {
			end = len(full)
		}
		onDelta(full[i:end])
		if e.ChunkDelay > 0 {
			time.Sleep(e.ChunkDelay)
		}
	}
	return full, nil
}

func fingerprint(model string, messages []engine.Message) string {
	var user string
	for i := len(messages) - 1; i >= 0; i-- {
		if strings.EqualFold(messages[i].Role, "user") {
			user = messages[i].Content
			break
		}
	}
	h := sha256.Sum256([]byte(model + "\n" + user))
	return hex.EncodeToString(h[:4])
}

func report(ref string) map[string]any {
	section := func(title string, items ...any) map[string]any {
		return map[string]any{"title": title, "items": items}
	}
	return map[string]any{
		"title":   "Offline travel plan " + ref,
		"summary": "Deterministic plan produced by the offline engine for local development.",
		"sections": []any{
			section("Flights",
				"Compare direct and one-stop fares before committing miles.",
				map[string]any{"text": "Search award space on partner airlines.", "tag": "tip", "links": []any{
					map[string]any{"label": "Google Flights", "url": "https://www.google.com/travel/flights", "type": "search"},
				}},
			),
			section("Lodging",
				"Book refundable lodging close to public transport.",
				"Confirm check-in times against the arrival flight.",
			),
			section("Execution order",
				map[string]any{"text": "Lock flights first, then lodging.", "tag": "action"},
				"Transfer points only after award seats are confirmed.",
			),
			section("Risks",
				map[string]any{"text": "Award availability can vanish within hours.", "tag": "warning"},
				"Keep digital copies of every travel document.",
			),
		},
		"assumptions": []any{"Generated offline without live fares."},
	}
}
