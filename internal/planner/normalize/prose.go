package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
)

const (
	proseMinRunes    = 40
	proseMaxItems    = 6
	proseSummaryCap  = contract.SummaryMax
	sentenceMinRunes = contract.ItemTextMin
)

// proseRecord turns free text into a single-section record. Text shorter
// than proseMinRunes is not worth salvaging.
func proseRecord(text string, fb contract.PlannerReport, d defaults) (*object, bool) {
	text = sanitize(strings.ReplaceAll(text, "```", " "))
	if utf8.RuneCountInString(text) < proseMinRunes {
		return nil, false
	}

	var items []any
	for _, s := range splitSentences(text) {
		s = stripBullet(s)
		if !fits(s, sentenceMinRunes, contract.ItemTextMax) {
			continue
		}
		items = append(items, s)
		if len(items) == proseMaxItems {
			break
		}
	}

	sec := newObject()
	sec.set("title", d.proseSection)
	sec.set("items", items)

	rec := newObject()
	rec.set("title", fb.Title)
	rec.set("summary", clipAtWord(text, proseSummaryCap))
	rec.set("sections", []any{sec})
	return rec, true
}

// splitSentences splits after '.', '!' or '?' when followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	rs := []rune(text)
	for i := 0; i < len(rs)-1; i++ {
		if (rs[i] == '.' || rs[i] == '!' || rs[i] == '?') && unicode.IsSpace(rs[i+1]) {
			if s := strings.TrimSpace(string(rs[start : i+1])); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(rs[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func clipAtWord(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	cut := string([]rune(s)[:n])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
