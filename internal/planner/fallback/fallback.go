package fallback

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
)

// Reason explains why a report was synthesized instead of generated.
type Reason string

const (
	// ReasonNone builds the assumption-free skeleton used as normalization filler.
	ReasonNone            Reason = ""
	ReasonMissingAPIKey   Reason = "missing_api_key"
	ReasonProviderFailure Reason = "provider_failure"
)

// EmergencySentinel is the only assumption carried by the emergency report.
const EmergencySentinel = "fallback:emergency"

// Interpolated values are clipped so no template can break a length bound.
const (
	placeMax = 60
	listMax  = 80
)

// Filler returns the section skeleton without assumptions. It is the content
// donor handed to the normalizer.
func Filler(locale contract.Locale, prefs contract.TravelPreferences) contract.PlannerReport {
	return Synthesize(locale, prefs, ReasonNone)
}

// Synthesize builds a valid report from the preferences alone. It never
// touches the network and always returns a report that passes validation.
func Synthesize(locale contract.Locale, prefs contract.TravelPreferences, reason Reason) contract.PlannerReport {
	t := templatesFor(locale)
	prefs = prefs.Trimmed()

	origins := clip(prefs.Origins, placeMax)
	destinations := clip(prefs.Destinations, placeMax)

	report := contract.PlannerReport{
		Title:   clip(fmt.Sprintf(t.title, origins, destinations), contract.TitleMax),
		Summary: clip(fmt.Sprintf(t.summary, origins, destinations, prefs.DepartureDate, prefs.ReturnDate, max(prefs.Travellers(), 1)), contract.SummaryMax),
		Sections: []contract.ReportSection{
			tripSummary(t, prefs, origins, destinations),
			redemption(t, prefs),
			execution(t, prefs, destinations),
			risks(t, prefs),
			nextSteps(t, origins, destinations),
		},
		Assumptions: assumptions(t, prefs, reason),
	}

	checked, err := contract.CheckReport(report)
	if err != nil {
		return Emergency(locale)
	}
	return checked
}

// Emergency is the last-resort report. It only depends on the locale.
func Emergency(locale contract.Locale) contract.PlannerReport {
	t := templatesFor(locale)
	out := contract.PlannerReport{
		Title:       t.emergencyTitle,
		Summary:     t.emergencySummary,
		Assumptions: []string{EmergencySentinel},
	}
	for _, s := range t.emergency {
		out.Sections = append(out.Sections, contract.ReportSection{
			Title: s[0],
			Items: []contract.ReportItem{contract.TextItem(s[1]), contract.TextItem(s[2])},
		})
	}
	return out
}

// SectionTitles lists the skeleton titles in order, used as a streaming order hint.
func SectionTitles(locale contract.Locale) []string {
	t := templatesFor(locale)
	return append([]string(nil), t.sectionTitles[:]...)
}

func tripSummary(t templates, p contract.TravelPreferences, origins, destinations string) contract.ReportSection {
	flex := t.flexNone
	if p.FlexDays > 0 {
		flex = fmt.Sprintf(t.flexSome, p.FlexDays)
	}
	return section(t.sectionTitles[0],
		fmt.Sprintf(t.route, origins, destinations, p.DepartureDate, p.ReturnDate),
		fmt.Sprintf(t.group, p.Adults, p.Children, p.Infants, t.label(string(p.Baggage))),
		fmt.Sprintf(t.flights, t.label(string(p.FlightPreference)), t.label(string(p.FlightWindow))),
		flex,
	)
}

func redemption(t templates, p contract.TravelPreferences) contract.ReportSection {
	miles := t.milesNone
	if p.MilesPrograms != "" {
		miles = fmt.Sprintf(t.milesSome, clip(p.MilesPrograms, listMax))
	}
	banks := t.banksNone
	if p.BankPrograms != "" {
		banks = fmt.Sprintf(t.banksSome, clip(p.BankPrograms, listMax))
	}
	return section(t.sectionTitles[1], miles, banks, t.nearDates)
}

func execution(t templates, p contract.TravelPreferences, destinations string) contract.ReportSection {
	lodging := fmt.Sprintf(t.lodging, t.label(string(p.LodgingProfile)))
	if p.Neighborhoods != "" {
		lodging = fmt.Sprintf(t.lodgingNear, t.label(string(p.LodgingProfile)), clip(p.Neighborhoods, listMax))
	}
	return section(t.sectionTitles[2],
		fmt.Sprintf(t.docs, destinations),
		t.bookOrder,
		lodging,
	)
}

func risks(t templates, p contract.TravelPreferences) contract.ReportSection {
	risk := t.riskMedium
	switch p.RiskTolerance {
	case contract.RiskLow:
		risk = t.riskLow
	case contract.RiskHigh:
		risk = t.riskHigh
	}
	return contract.ReportSection{
		Title: t.sectionTitles[3],
		Items: []contract.ReportItem{
			{Structured: &contract.StructuredItem{Text: risk, Tag: contract.TagWarning}},
			contract.TextItem(t.schedule),
			{Structured: &contract.StructuredItem{Text: t.insurance, Tag: contract.TagTip}},
		},
	}
}

func nextSteps(t templates, origins, destinations string) contract.ReportSection {
	flights := "https://www.google.com/travel/flights?q=" + url.QueryEscape("flights from "+origins+" to "+destinations)
	hotels := "https://www.google.com/travel/hotels?q=" + url.QueryEscape(destinations)
	return contract.ReportSection{
		Title: t.sectionTitles[4],
		Items: []contract.ReportItem{
			{Structured: &contract.StructuredItem{
				Text:  fmt.Sprintf(t.searchFlight, origins, destinations),
				Tag:   contract.TagAction,
				Links: []contract.ActionLink{{Label: t.searchLabel, URL: clipURL(flights), Type: contract.LinkSearch}},
			}},
			{Structured: &contract.StructuredItem{
				Text:  fmt.Sprintf(t.lodgingLink, destinations),
				Tag:   contract.TagAction,
				Links: []contract.ActionLink{{Label: t.lodgingLabel, URL: clipURL(hotels), Type: contract.LinkBook}},
			}},
			{Structured: &contract.StructuredItem{Text: t.reviewPlan, Tag: contract.TagTip}},
		},
	}
}

func assumptions(t templates, p contract.TravelPreferences, reason Reason) []string {
	out := []string{}
	if reason == ReasonNone {
		return out
	}
	if p.MilesPrograms == "" {
		out = append(out, t.assumeNoMiles)
	}
	if p.BudgetBRL == "" {
		out = append(out, t.assumeNoBudget)
	}
	if p.Visas == "" {
		out = append(out, t.assumeNoDocs)
	}
	out = append(out, t.assumeResilient)
	if reason == ReasonMissingAPIKey {
		out = append(out, t.assumeMissingKey)
	}
	return out
}

func section(title string, items ...string) contract.ReportSection {
	s := contract.ReportSection{Title: title}
	for _, it := range items {
		s.Items = append(s.Items, contract.TextItem(clip(it, contract.ItemTextMax)))
	}
	return s
}

func (t templates) label(v string) string {
	if l, ok := t.enums[v]; ok {
		return l
	}
	return v
}

// clip shortens s to at most n runes, preferring a word boundary.
func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)[:n-1]
	cut := string(r)
	if i := strings.LastIndexByte(cut, ' '); i > n/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;.") + "…"
}

func clipURL(u string) string {
	if len(u) <= contract.LinkURLMax {
		return u
	}
	u = u[:contract.LinkURLMax]
	// never end inside a %XX escape
	if i := strings.LastIndexByte(u, '%'); i >= len(u)-2 {
		u = u[:i]
	}
	return u
}
