package fallback

import (
	"strings"
	"testing"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
)

func prefs() contract.TravelPreferences {
	return contract.TravelPreferences{
		DepartureDate:    "2026-09-10",
		ReturnDate:       "2026-09-20",
		Origins:          "GRU",
		Destinations:     "LIS, MAD",
		Adults:           2,
		FlightPreference: contract.FlightDirect,
		FlightWindow:     contract.WindowMorning,
		Baggage:          contract.BaggageChecked,
		RiskTolerance:    contract.RiskMedium,
		LodgingProfile:   contract.LodgingComfort,
	}
}

func TestSynthesizeIsValidForBothLocales(t *testing.T) {
	t.Parallel()
	for _, loc := range []contract.Locale{contract.LocalePT, contract.LocaleEN} {
		for _, reason := range []Reason{ReasonNone, ReasonMissingAPIKey, ReasonProviderFailure} {
			r := Synthesize(loc, prefs(), reason)
			if _, err := contract.CheckReport(r); err != nil {
				t.Fatalf("locale=%s reason=%q invalid: %v", loc, reason, err)
			}
			if len(r.Sections) != 5 {
				t.Fatalf("sections=%d", len(r.Sections))
			}
			if r.Assumptions[0] == EmergencySentinel {
				t.Fatalf("locale=%s reason=%q fell through to emergency", loc, reason)
			}
		}
	}
}

func TestSynthesizeReferencesPreferences(t *testing.T) {
	t.Parallel()
	r := Synthesize(contract.LocaleEN, prefs(), ReasonProviderFailure)
	first := r.Sections[0].Items[0].Content()
	if !strings.Contains(first, "GRU") || !strings.Contains(first, "LIS, MAD") || !strings.Contains(first, "2026-09-10") {
		t.Fatalf("route item does not reference preferences: %q", first)
	}
}

func TestAssumptionsByReason(t *testing.T) {
	t.Parallel()
	tpl := templatesFor(contract.LocalePT)

	filler := Filler(contract.LocalePT, prefs())
	if len(filler.Assumptions) != 0 {
		t.Fatalf("filler must not carry assumptions: %v", filler.Assumptions)
	}

	failed := Synthesize(contract.LocalePT, prefs(), ReasonProviderFailure)
	if !contains(failed.Assumptions, tpl.assumeResilient) {
		t.Fatalf("resilient notice missing: %v", failed.Assumptions)
	}
	if !contains(failed.Assumptions, tpl.assumeNoMiles) || !contains(failed.Assumptions, tpl.assumeNoBudget) {
		t.Fatalf("missing-field assumptions missing: %v", failed.Assumptions)
	}
	if contains(failed.Assumptions, tpl.assumeMissingKey) {
		t.Fatalf("config hint only belongs to missing_api_key")
	}

	p := prefs()
	p.MilesPrograms = "Smiles"
	p.BudgetBRL = "15000"
	p.Visas = "Schengen"
	noKey := Synthesize(contract.LocalePT, p, ReasonMissingAPIKey)
	if contains(noKey.Assumptions, tpl.assumeNoMiles) || contains(noKey.Assumptions, tpl.assumeNoDocs) {
		t.Fatalf("provided fields reported missing: %v", noKey.Assumptions)
	}
	if !contains(noKey.Assumptions, tpl.assumeMissingKey) {
		t.Fatalf("config hint missing: %v", noKey.Assumptions)
	}
}

func TestSynthesizeClipsLongValues(t *testing.T) {
	t.Parallel()
	p := prefs()
	p.Origins = strings.Repeat("São Paulo Guarulhos ", 10)
	p.Destinations = strings.Repeat("Lisboa Ávila Mérida ", 10)
	p.Neighborhoods = strings.Repeat("Chiado Alfama ", 20)
	r := Synthesize(contract.LocalePT, p, ReasonProviderFailure)
	if _, err := contract.CheckReport(r); err != nil {
		t.Fatalf("long values broke the report: %v", err)
	}
	if r.Assumptions[0] == EmergencySentinel {
		t.Fatalf("long values fell through to emergency")
	}
}

func TestEmergencyIsValid(t *testing.T) {
	t.Parallel()
	for _, loc := range []contract.Locale{contract.LocalePT, contract.LocaleEN} {
		r := Emergency(loc)
		if _, err := contract.CheckReport(r); err != nil {
			t.Fatalf("emergency %s invalid: %v", loc, err)
		}
		if len(r.Assumptions) != 1 || r.Assumptions[0] != EmergencySentinel {
			t.Fatalf("emergency assumptions=%v", r.Assumptions)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
