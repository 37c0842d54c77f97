package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
)

// rebuild reshapes an ordered record into a report, borrowing structure from
// fb wherever the record is missing or out of bounds.
func rebuild(rec *object, fb contract.PlannerReport, d defaults) contract.PlannerReport {
	rec = unwrap(rec)

	out := contract.PlannerReport{
		Title:       pickString(rec, titleKeys, contract.TitleMin, contract.TitleMax, fb.Title, d.title),
		Summary:     pickString(rec, summaryKeys, contract.SummaryMin, contract.SummaryMax, fb.Summary, d.summary),
		Assumptions: pickAssumptions(rec),
	}

	if raw, ok := rec.lookup(sectionsKeys); ok {
		switch t := raw.(type) {
		case []any:
			out.Sections = explicitSections(t, fb.Sections)
		case *object:
			// {"sections": {"Flights": [...], ...}}
			out.Sections = implicitSections(t, fb.Sections, false)
		}
	} else {
		out.Sections = implicitSections(rec, fb.Sections, true)
	}

	out.Sections = padSections(out.Sections, fb.Sections)
	return out
}

// unwrap descends into {"report": {...}} style envelopes when the outer
// object has no report fields of its own.
func unwrap(rec *object) *object {
	for depth := 0; depth < 3; depth++ {
		if hasAny(rec, titleKeys, summaryKeys, sectionsKeys) {
			return rec
		}
		raw, ok := rec.lookup(wrapperKeys)
		if !ok {
			return rec
		}
		inner, ok := raw.(*object)
		if !ok {
			return rec
		}
		rec = inner
	}
	return rec
}

func hasAny(rec *object, lists ...[]string) bool {
	for _, l := range lists {
		if _, ok := rec.lookup(l); ok {
			return true
		}
	}
	return false
}

// pickString returns the first synonym value whose sanitized length fits,
// else the first non-empty default.
func pickString(rec *object, keys []string, min, max int, defaults ...string) string {
	for _, v := range rec.lookupAll(keys) {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = sanitize(s)
		if fits(s, min, max) {
			return s
		}
	}
	for _, s := range defaults {
		if s = sanitize(s); s != "" {
			return s
		}
	}
	return ""
}

func pickAssumptions(rec *object) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, v := range rec.lookupAll(assumptionKeys) {
		var list []any
		switch t := v.(type) {
		case []any:
			list = t
		case string:
			list = []any{t}
		}
		for _, e := range list {
			var s string
			switch t := e.(type) {
			case string:
				s = t
			case *object:
				s = pickString(t, itemTextKeys, contract.AssumptionMin, contract.AssumptionMax)
			}
			s = stripBullet(sanitize(s))
			if !fits(s, contract.AssumptionMin, contract.AssumptionMax) || seen[foldText(s)] {
				continue
			}
			seen[foldText(s)] = true
			out = append(out, s)
			if len(out) == contract.AssumptionsMax {
				return out
			}
		}
	}
	return out
}

func explicitSections(arr []any, fb []contract.ReportSection) []contract.ReportSection {
	out := make([]contract.ReportSection, 0, len(arr))
	for i, entry := range arr {
		var donor *contract.ReportSection
		if len(fb) > 0 {
			donor = &fb[i%len(fb)]
		}
		var (
			title string
			items []contract.ReportItem
		)
		switch t := entry.(type) {
		case *object:
			title = pickString(t, sectionTitleKeys, contract.SectionTitleMin, contract.SectionTitleMax)
			if raw, ok := t.lookup(itemsKeys); ok {
				items = normalizeItems(raw)
			}
		case []any:
			items = normalizeItems(t)
		default:
			continue
		}
		if title == "" && donor != nil {
			title = donor.Title
		}
		if sec, ok := finishSection(title, items, donor); ok {
			out = append(out, sec)
		}
	}
	return out
}

// implicitSections turns array values keyed by a title into sections. At the
// top level reserved keys are skipped. The array must contribute at least one
// usable item of its own.
func implicitSections(rec *object, fb []contract.ReportSection, skipReserved bool) []contract.ReportSection {
	var out []contract.ReportSection
	n := 0
	for _, key := range rec.keys {
		if skipReserved && reservedKeys[foldKey(key)] {
			continue
		}
		arr, ok := rec.values[key].([]any)
		if !ok {
			continue
		}
		items := normalizeItems(arr)
		if len(items) == 0 {
			continue
		}
		var donor *contract.ReportSection
		if len(fb) > 0 {
			donor = &fb[n%len(fb)]
		}
		n++
		title := humanizeKey(key)
		if !fits(title, contract.SectionTitleMin, contract.SectionTitleMax) {
			title = ""
			if donor != nil {
				title = donor.Title
			}
		}
		if sec, ok := finishSection(title, items, donor); ok {
			out = append(out, sec)
		}
	}
	return out
}

// finishSection pads items from the donor up to the floor and caps them.
func finishSection(title string, items []contract.ReportItem, donor *contract.ReportSection) (contract.ReportSection, bool) {
	if !fits(title, contract.SectionTitleMin, contract.SectionTitleMax) {
		return contract.ReportSection{}, false
	}
	if len(items) < contract.ItemsMin && donor != nil {
		seen := map[string]bool{}
		for _, it := range items {
			seen[foldText(it.Content())] = true
		}
		for _, it := range donor.Items {
			if len(items) >= contract.ItemsMin {
				break
			}
			if seen[foldText(it.Content())] {
				continue
			}
			seen[foldText(it.Content())] = true
			items = append(items, it)
		}
	}
	if len(items) < contract.ItemsMin {
		return contract.ReportSection{}, false
	}
	if len(items) > contract.ItemsMax {
		items = items[:contract.ItemsMax]
	}
	return contract.ReportSection{Title: title, Items: items}, true
}

// padSections appends donor sections, skipping title collisions, until the
// floor is met, then caps the list.
func padSections(secs []contract.ReportSection, fb []contract.ReportSection) []contract.ReportSection {
	if len(secs) < contract.SectionsMin {
		have := map[string]bool{}
		for _, s := range secs {
			have[foldText(s.Title)] = true
		}
		for _, s := range fb {
			if len(secs) >= contract.SectionsMin {
				break
			}
			if have[foldText(s.Title)] {
				continue
			}
			have[foldText(s.Title)] = true
			secs = append(secs, s)
		}
	}
	if len(secs) > contract.SectionsMax {
		secs = secs[:contract.SectionsMax]
	}
	return secs
}

func normalizeItems(raw any) []contract.ReportItem {
	var list []any
	switch t := raw.(type) {
	case []any:
		list = t
	case string, *object:
		list = []any{t}
	default:
		return nil
	}
	out := make([]contract.ReportItem, 0, len(list))
	seen := map[string]bool{}
	for _, e := range list {
		it, ok := normalizeItem(e)
		if !ok || seen[foldText(it.Content())] {
			continue
		}
		seen[foldText(it.Content())] = true
		out = append(out, it)
	}
	return out
}

func normalizeItem(v any) (contract.ReportItem, bool) {
	switch t := v.(type) {
	case string:
		s := stripBullet(sanitize(t))
		if !fits(s, contract.ItemTextMin, contract.ItemTextMax) {
			return contract.ReportItem{}, false
		}
		return contract.TextItem(s), true
	case *object:
		text := stripBullet(pickString(t, itemTextKeys, contract.ItemTextMin, contract.ItemTextMax))
		if !fits(text, contract.ItemTextMin, contract.ItemTextMax) {
			return contract.ReportItem{}, false
		}
		tag := pickTag(t)
		links := pickLinks(t)
		if tag == "" && len(links) == 0 {
			return contract.TextItem(text), true
		}
		return contract.ReportItem{Structured: &contract.StructuredItem{Text: text, Tag: tag, Links: links}}, true
	default:
		return contract.ReportItem{}, false
	}
}

func pickTag(o *object) contract.ItemTag {
	for _, v := range o.lookupAll(itemTagKeys) {
		if s, ok := v.(string); ok {
			if tag, ok := tagSynonyms[foldKey(s)]; ok {
				return tag
			}
		}
	}
	return ""
}

func pickLinks(o *object) []contract.ActionLink {
	raw, ok := o.lookup(itemLinksKeys)
	if !ok {
		return nil
	}
	var list []any
	switch t := raw.(type) {
	case []any:
		list = t
	case *object:
		list = []any{t}
	default:
		return nil
	}
	var out []contract.ActionLink
	for _, e := range list {
		lo, ok := e.(*object)
		if !ok {
			continue
		}
		label := pickString(lo, linkLabelKeys, 1, 1<<16)
		label = clipRunes(label, contract.LinkLabelMax)
		if !fits(label, contract.LinkLabelMin, contract.LinkLabelMax) {
			continue
		}
		u := pickString(lo, linkURLKeys, 1, contract.LinkURLMax)
		if !contract.IsAbsoluteURL(u) {
			continue
		}
		lt := contract.LinkInfo
		if s, ok := firstString(lo.lookupAll(linkTypeKeys)); ok {
			if mapped, ok := linkTypeSynonyms[foldKey(s)]; ok {
				lt = mapped
			}
		}
		out = append(out, contract.ActionLink{Label: label, URL: u, Type: lt})
		if len(out) == contract.LinksMax {
			break
		}
	}
	return out
}

func firstString(vals []any) (string, bool) {
	for _, v := range vals {
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return "", false
}

// humanizeKey turns "quickGuide_lisbon-metro" into "Quick guide lisbon metro".
func humanizeKey(key string) string {
	var b strings.Builder
	var prev rune
	for i, r := range strings.TrimSpace(key) {
		switch {
		case r == '_' || r == '-':
			b.WriteRune(' ')
		case i > 0 && unicode.IsUpper(r) && unicode.IsLower(prev):
			b.WriteRune(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
		prev = r
	}
	s := strings.ToLower(sanitize(b.String()))
	folded := foldText(s)
	for _, p := range guidePrefixes {
		if strings.HasPrefix(folded, p.folded) {
			rest := strings.TrimSpace(string([]rune(s)[utf8.RuneCountInString(p.canonical):]))
			return strings.TrimSpace(p.canonical + " " + titleCase(rest))
		}
	}
	return upperFirst(s)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = upperFirst(w)
	}
	return strings.Join(words, " ")
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// sanitize collapses runs of whitespace and trims.
func sanitize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripBullet(s string) string {
	for _, p := range []string{"- ", "* ", "• ", "· ", "– "} {
		if strings.HasPrefix(s, p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	return s
}

func fits(s string, min, max int) bool {
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

func clipRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
