package sse

import (
	"encoding/json"
	"strings"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
	"github.com/yungbote/travelplanner-backend/internal/planner/partialjson"
)

// Progress is what a delta event carries: the best view of the report so
// far. Sections lists only complete sections, in order.
type Progress struct {
	Title    string                   `json:"title,omitempty"`
	Summary  string                   `json:"summary,omitempty"`
	Sections []contract.ReportSection `json:"sections"`
}

// ParseProgress reads the accumulated text of a streamed JSON object and
// returns whatever can be recovered from it. ok is false when no object
// has started yet.
func ParseProgress(text string) (Progress, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return Progress{}, false
	}
	closed, ok := partialjson.Close(text[start:], true)
	if !ok {
		return Progress{}, false
	}
	v, ok := decode(closed)
	if !ok {
		return Progress{}, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Progress{}, false
	}
	return progressFrom(m), true
}

func decode(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

func progressFrom(m map[string]any) Progress {
	p := Progress{Sections: []contract.ReportSection{}}
	p.Title, _ = m["title"].(string)
	p.Title = strings.TrimSpace(p.Title)
	p.Summary, _ = m["summary"].(string)
	p.Summary = strings.TrimSpace(p.Summary)

	secs, _ := m["sections"].([]any)
	for _, raw := range secs {
		sm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title, _ := sm["title"].(string)
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		items := progressItems(sm["items"])
		if len(items) == 0 {
			continue
		}
		p.Sections = append(p.Sections, contract.ReportSection{Title: title, Items: items})
	}
	return p
}

func progressItems(raw any) []contract.ReportItem {
	arr, _ := raw.([]any)
	var out []contract.ReportItem
	for _, v := range arr {
		switch it := v.(type) {
		case string:
			if s := strings.TrimSpace(it); s != "" {
				out = append(out, contract.TextItem(s))
			}
		case map[string]any:
			text, _ := it["text"].(string)
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			item := contract.StructuredItem{Text: text}
			if tag, ok := it["tag"].(string); ok {
				switch t := contract.ItemTag(tag); t {
				case contract.TagTip, contract.TagWarning, contract.TagAction, contract.TagInfo:
					item.Tag = t
				}
			}
			out = append(out, contract.ReportItem{Structured: &item})
		}
	}
	return out
}
