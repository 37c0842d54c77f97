package prompt

import (
	"fmt"
	"strings"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
)

type Prompts struct {
	System string
	User   string
}

type Options struct {
	// SectionOrder hints the order in which sections should be written so a
	// streaming client sees them arrive in a stable sequence. It does not
	// constrain validation.
	SectionOrder []string
}

type localeText struct {
	role          string
	rules         []string
	shape         string
	orderHint     string
	intro         string
	labels        map[string]string
	unset         string
	travellerLine string
}

var texts = map[contract.Locale]localeText{
	contract.LocalePT: {
		role: "Você é um planejador de viagens especializado em emissão de passagens com milhas, pontos de bancos e logística de viagem.",
		rules: []string{
			"Não invente disponibilidade, tarifas ou preços em tempo real; indique onde o viajante deve verificar.",
			"Explicite os trade-offs entre as opções (custo, tempo, risco, conforto).",
			"Quando faltar informação, registre a suposição feita em \"assumptions\" em vez de perguntar.",
			"Seja operacional e concreto: passos, ordem de execução, prazos e links de busca quando úteis.",
			"Escreva em português do Brasil.",
		},
		shape:         "Responda somente com um objeto JSON com as chaves title, summary, sections (4 a 8 seções, cada uma com title e 2 a 6 items) e assumptions (até 10 frases curtas). Cada item é um texto ou um objeto {text, tag?, links?}; tag ∈ tip|warning|action|info; cada link tem label, url absoluta e type ∈ search|book|info|map.",
		orderHint:     "Escreva as seções nesta ordem: ",
		intro:         "Monte o plano de viagem a partir destas preferências:",
		unset:         "não informado",
		travellerLine: "Passageiros: %d adulto(s), %d criança(s), %d bebê(s)",
		labels: map[string]string{
			"dates":         "Datas",
			"flex":          "Flexibilidade (dias)",
			"origins":       "Origens",
			"destinations":  "Destinos",
			"flight":        "Preferência de voo",
			"window":        "Horários de voo",
			"baggage":       "Bagagem",
			"miles":         "Programas de milhas",
			"banks":         "Programas de bancos",
			"visas":         "Vistos existentes",
			"budget":        "Orçamento (BRL)",
			"risk":          "Tolerância a risco",
			"lodging":       "Perfil de hospedagem",
			"neighborhoods": "Bairros preferidos",
			"profile":       "Perfil",
			"constraints":   "Restrições",
		},
	},
	contract.LocaleEN: {
		role: "You are a travel planner specialised in award tickets, bank point transfers and trip logistics.",
		rules: []string{
			"Do not fabricate real-time availability, fares or prices; say where the traveller should check.",
			"Surface the trade-offs between options (cost, time, risk, comfort).",
			"When information is missing, record the assumption you made in \"assumptions\" instead of asking.",
			"Stay operational and concrete: steps, execution order, deadlines and search links where useful.",
			"Write in English.",
		},
		shape:         "Reply only with a JSON object with the keys title, summary, sections (4 to 8 sections, each with a title and 2 to 6 items) and assumptions (up to 10 short sentences). Each item is either a string or an object {text, tag?, links?}; tag ∈ tip|warning|action|info; every link has a label, an absolute url and type ∈ search|book|info|map.",
		orderHint:     "Write the sections in this order: ",
		intro:         "Build the trip plan from these preferences:",
		unset:         "not provided",
		travellerLine: "Travellers: %d adult(s), %d child(ren), %d infant(s)",
		labels: map[string]string{
			"dates":         "Dates",
			"flex":          "Flexibility (days)",
			"origins":       "Origins",
			"destinations":  "Destinations",
			"flight":        "Flight preference",
			"window":        "Flight times",
			"baggage":       "Baggage",
			"miles":         "Loyalty programs",
			"banks":         "Bank programs",
			"visas":         "Existing visas",
			"budget":        "Budget (BRL)",
			"risk":          "Risk tolerance",
			"lodging":       "Lodging standard",
			"neighborhoods": "Preferred neighborhoods",
			"profile":       "Traveller profile",
			"constraints":   "Constraints",
		},
	},
}

func textsFor(locale contract.Locale) localeText {
	if t, ok := texts[locale.Normalize()]; ok {
		return t
	}
	return texts[contract.DefaultLocale]
}

// Build renders the system and user prompts. Output depends only on its inputs.
func Build(locale contract.Locale, prefs contract.TravelPreferences, opts Options) Prompts {
	t := textsFor(locale)

	var sys strings.Builder
	sys.WriteString(t.role)
	sys.WriteString("\n")
	for _, r := range t.rules {
		sys.WriteString("- ")
		sys.WriteString(r)
		sys.WriteString("\n")
	}
	sys.WriteString(t.shape)
	if order := cleanOrder(opts.SectionOrder); len(order) > 0 {
		sys.WriteString("\n")
		sys.WriteString(t.orderHint)
		sys.WriteString(strings.Join(order, " → "))
		sys.WriteString(".")
	}

	var user strings.Builder
	user.WriteString(t.intro)
	user.WriteString("\n")
	line := func(key, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			value = t.unset
		}
		fmt.Fprintf(&user, "- %s: %s\n", t.labels[key], value)
	}
	line("dates", prefs.DepartureDate+" → "+prefs.ReturnDate)
	line("flex", fmt.Sprintf("%d", prefs.FlexDays))
	line("origins", prefs.Origins)
	line("destinations", prefs.Destinations)
	fmt.Fprintf(&user, "- "+t.travellerLine+"\n", prefs.Adults, prefs.Children, prefs.Infants)
	line("flight", string(prefs.FlightPreference))
	line("window", string(prefs.FlightWindow))
	line("baggage", string(prefs.Baggage))
	line("miles", prefs.MilesPrograms)
	line("banks", prefs.BankPrograms)
	line("visas", prefs.Visas)
	line("budget", prefs.BudgetBRL)
	line("risk", string(prefs.RiskTolerance))
	line("lodging", string(prefs.LodgingProfile))
	line("neighborhoods", prefs.Neighborhoods)
	line("profile", prefs.Profile)
	line("constraints", prefs.Constraints)

	return Prompts{System: sys.String(), User: strings.TrimRight(user.String(), "\n")}
}

func cleanOrder(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
