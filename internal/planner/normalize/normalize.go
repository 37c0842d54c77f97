// Package normalize coerces loosely shaped model output into a valid
// contract.PlannerReport.
//
// The repair pipeline only reshapes and pads. Any content it injects comes
// from the caller-supplied fallback report, never from guesses.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
)

// Stage names the pipeline step that produced a report.
type Stage string

const (
	StageDirect   Stage = "direct"
	StageRepaired Stage = "repaired"
	StageProse    Stage = "prose"
	// StagePartial is a truncated JSON reply rebuilt from its complete values.
	StagePartial  Stage = "partial"
)

// Normalize returns a valid report for candidate, or false when nothing
// usable could be recovered.
func Normalize(candidate any, fb contract.PlannerReport, locale contract.Locale) (contract.PlannerReport, bool) {
	r, _, ok := NormalizeStage(candidate, fb, locale)
	return r, ok
}

// NormalizeStage is Normalize that also reports which step succeeded.
func NormalizeStage(candidate any, fb contract.PlannerReport, locale contract.Locale) (contract.PlannerReport, Stage, bool) {
	if candidate == nil {
		return contract.PlannerReport{}, "", false
	}
	if r, ok := direct(candidate); ok {
		return r, StageDirect, true
	}

	d := defaultsFor(locale)
	rec, stage, ok := toRecord(candidate, fb, d)
	if !ok {
		return contract.PlannerReport{}, "", false
	}
	out, err := contract.CheckReport(rebuild(rec, fb, d))
	if err != nil {
		return contract.PlannerReport{}, "", false
	}
	return out, stage, true
}

// direct validates the candidate as-is.
func direct(candidate any) (contract.PlannerReport, bool) {
	var (
		r   contract.PlannerReport
		err error
	)
	switch t := candidate.(type) {
	case contract.PlannerReport:
		r, err = contract.CheckReport(t)
	case *contract.PlannerReport:
		if t == nil {
			return contract.PlannerReport{}, false
		}
		r, err = contract.CheckReport(*t)
	case string:
		r, err = contract.ValidateReport([]byte(strings.TrimSpace(t)))
	case []byte:
		r, err = contract.ValidateReport(t)
	case json.RawMessage:
		r, err = contract.ValidateReport(t)
	default:
		b, mErr := json.Marshal(t)
		if mErr != nil {
			return contract.PlannerReport{}, false
		}
		r, err = contract.ValidateReport(b)
	}
	return r, err == nil
}

// toRecord finds an object to rebuild from: extracted JSON for text,
// the value itself otherwise, and a prose record as the last resort.
func toRecord(candidate any, fb contract.PlannerReport, d defaults) (*object, Stage, bool) {
	var text string
	switch t := candidate.(type) {
	case string:
		text = t
	case []byte:
		text = string(t)
	case json.RawMessage:
		text = string(t)
	}

	var value any
	stage := StageRepaired
	if text != "" {
		if v, ok := extractValue(text); ok {
			value = v
		} else if body, isJSON := jsonBody(text); isJSON {
			// JSON syntax is never prose.
			v, ok := salvageTruncated(body)
			if !ok {
				return nil, "", false
			}
			value, stage = v, StagePartial
		} else if strings.Contains(text, `{"`) {
			// embedded JSON that could not be recovered
			return nil, "", false
		}
	} else if v, ok := fromGo(candidate); ok {
		value = v
	}

	switch v := value.(type) {
	case *object:
		return v, stage, true
	case []any:
		rec := newObject()
		rec.set("sections", v)
		return rec, stage, true
	case string:
		text = v
	}

	if text == "" {
		return nil, "", false
	}
	rec, ok := proseRecord(text, fb, d)
	if !ok {
		return nil, "", false
	}
	return rec, StageProse, true
}
