package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

type ItemTag string

const (
	TagTip     ItemTag = "tip"
	TagWarning ItemTag = "warning"
	TagAction  ItemTag = "action"
	TagInfo    ItemTag = "info"
)

type LinkType string

const (
	LinkSearch LinkType = "search"
	LinkBook   LinkType = "book"
	LinkInfo   LinkType = "info"
	LinkMap    LinkType = "map"
)

// Report bounds. Every length is counted in runes after trimming.
const (
	TitleMin, TitleMax               = 6, 120
	SummaryMin, SummaryMax           = 20, 360
	SectionsMin, SectionsMax         = 4, 8
	SectionTitleMin, SectionTitleMax = 4, 120
	ItemsMin, ItemsMax               = 2, 6
	ItemTextMin, ItemTextMax         = 6, 240
	AssumptionsMax                   = 10
	AssumptionMin, AssumptionMax     = 6, 180
	LinksMax                         = 3
	LinkLabelMin, LinkLabelMax       = 2, 60
	LinkURLMax                       = 500
)

type ActionLink struct {
	Label string   `json:"label" validate:"min=2,max=60"`
	URL   string   `json:"url" validate:"required,max=500,absurl"`
	Type  LinkType `json:"type" validate:"oneof=search book info map"`
}

type StructuredItem struct {
	Text  string       `json:"text" validate:"min=6,max=240"`
	Tag   ItemTag      `json:"tag,omitempty" validate:"omitempty,oneof=tip warning action info"`
	Links []ActionLink `json:"links,omitempty" validate:"omitempty,max=3,dive"`
}

// ReportItem is either plain text or a StructuredItem. Exactly one form is
// set: Structured wins when non-nil.
type ReportItem struct {
	Text       string
	Structured *StructuredItem
}

func TextItem(s string) ReportItem { return ReportItem{Text: s} }

// Content returns the display text of either form.
func (i ReportItem) Content() string {
	if i.Structured != nil {
		return i.Structured.Text
	}
	return i.Text
}

func (i ReportItem) MarshalJSON() ([]byte, error) {
	if i.Structured != nil {
		return json.Marshal(i.Structured)
	}
	return json.Marshal(i.Text)
}

func (i *ReportItem) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.New("report item: empty value")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*i = ReportItem{Text: s}
		return nil
	case '{':
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.DisallowUnknownFields()
		var si StructuredItem
		if err := dec.Decode(&si); err != nil {
			return err
		}
		*i = ReportItem{Structured: &si}
		return nil
	default:
		return errors.New("report item: must be a string or an object")
	}
}

type ReportSection struct {
	Title string       `json:"title" validate:"min=4,max=120"`
	Items []ReportItem `json:"items" validate:"min=2,max=6,dive"`
}

// PlannerReport is the renderable output contract.
type PlannerReport struct {
	Title       string          `json:"title" validate:"min=6,max=120"`
	Summary     string          `json:"summary" validate:"min=20,max=360"`
	Sections    []ReportSection `json:"sections" validate:"min=4,max=8,dive"`
	Assumptions []string        `json:"assumptions" validate:"max=10,dive,min=6,max=180"`
}

// Trimmed returns a deep copy with surrounding whitespace removed from every string.
func (r PlannerReport) Trimmed() PlannerReport {
	out := PlannerReport{
		Title:       strings.TrimSpace(r.Title),
		Summary:     strings.TrimSpace(r.Summary),
		Sections:    make([]ReportSection, 0, len(r.Sections)),
		Assumptions: make([]string, 0, len(r.Assumptions)),
	}
	for _, a := range r.Assumptions {
		out.Assumptions = append(out.Assumptions, strings.TrimSpace(a))
	}
	for _, s := range r.Sections {
		sec := ReportSection{Title: strings.TrimSpace(s.Title), Items: make([]ReportItem, 0, len(s.Items))}
		for _, it := range s.Items {
			sec.Items = append(sec.Items, it.trimmed())
		}
		out.Sections = append(out.Sections, sec)
	}
	return out
}

func (i ReportItem) trimmed() ReportItem {
	if i.Structured == nil {
		return ReportItem{Text: strings.TrimSpace(i.Text)}
	}
	si := StructuredItem{
		Text: strings.TrimSpace(i.Structured.Text),
		Tag:  ItemTag(strings.TrimSpace(string(i.Structured.Tag))),
	}
	for _, l := range i.Structured.Links {
		si.Links = append(si.Links, ActionLink{
			Label: strings.TrimSpace(l.Label),
			URL:   strings.TrimSpace(l.URL),
			Type:  LinkType(strings.TrimSpace(string(l.Type))),
		})
	}
	return ReportItem{Structured: &si}
}

type Mode string

const (
	ModeAI       Mode = "ai"
	ModeFallback Mode = "fallback"
)

// GenerationResult is built once per request and not mutated afterwards.
type GenerationResult struct {
	Report PlannerReport `json:"report"`
	Mode   Mode          `json:"mode"`
	// Model is the label of the model that produced the report. Empty for fallbacks.
	Model string `json:"-"`
}
