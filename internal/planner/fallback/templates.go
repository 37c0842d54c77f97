package fallback

import "github.com/yungbote/travelplanner-backend/internal/planner/contract"

type templates struct {
	title   string
	summary string

	sectionTitles [5]string

	route     string
	group     string
	flights   string
	flexNone  string
	flexSome  string
	milesSome string
	milesNone string
	banksSome string
	banksNone string
	nearDates string

	docs         string
	bookOrder    string
	lodging      string
	lodgingNear  string
	riskLow      string
	riskMedium   string
	riskHigh     string
	schedule     string
	insurance    string
	searchFlight string
	searchLabel  string
	reviewPlan   string
	lodgingLink  string
	lodgingLabel string

	assumeNoMiles    string
	assumeNoBudget   string
	assumeNoDocs     string
	assumeResilient  string
	assumeMissingKey string

	enums map[string]string

	emergencyTitle   string
	emergencySummary string
	emergency        [4][3]string
}

var byLocale = map[contract.Locale]templates{
	contract.LocalePT: {
		title:   "Plano de viagem: %s → %s",
		summary: "Roteiro de %s para %s entre %s e %s para %d viajante(s), com estratégia de emissão, ordem de execução e riscos mapeados.",
		sectionTitles: [5]string{
			"Resumo da viagem",
			"Estratégia de emissão",
			"Ordem de execução",
			"Riscos e mitigações",
			"Próximos passos",
		},
		route:     "Rota %s → %s, ida em %s e volta em %s.",
		group:     "Grupo de %d adulto(s), %d criança(s) e %d bebê(s), com bagagem %s.",
		flights:   "Voos %s, preferencialmente no período da %s.",
		flexNone:  "Datas fixas: priorize a disponibilidade exata nos dias escolhidos.",
		flexSome:  "Flexibilidade de ±%d dia(s): compare datas vizinhas antes de emitir.",
		milesSome: "Compare o custo em milhas nos programas informados (%s) com a tarifa em dinheiro antes de emitir.",
		milesNone: "Sem programas de milhas informados: compare tarifas em dinheiro e avalie um programa parceiro das companhias da rota.",
		banksSome: "Transfira pontos de %s apenas depois de confirmar a disponibilidade, aproveitando bônus de transferência.",
		banksNone: "Sem pontos de banco informados: verifique se o cartão atual acumula pontos transferíveis.",
		nearDates: "Consulte a disponibilidade de assentos prêmio em mais de um programa parceiro.",

		docs:         "Confirme passaporte, vistos e exigências de entrada para %s.",
		bookOrder:    "Emita primeiro os trechos de maior demanda e depois os trechos internos.",
		lodging:      "Reserve hospedagem %s com cancelamento gratuito.",
		lodgingNear:  "Reserve hospedagem %s com cancelamento gratuito, de preferência em %s.",
		riskLow:      "Prefira tarifas reembolsáveis e conexões de pelo menos duas horas.",
		riskMedium:   "Equilibre preço e flexibilidade: aceite conexões curtas apenas no mesmo bilhete.",
		riskHigh:     "Tarifas promocionais e bilhetes separados reduzem o custo, mas exigem margem para imprevistos.",
		schedule:     "Acompanhe alterações de horário da companhia aérea até a data do voo.",
		insurance:    "Considere um seguro viagem que cubra atrasos e extravio de bagagem.",
		searchFlight: "Pesquise voos de %s para %s nas datas escolhidas.",
		searchLabel:  "Buscar voos",
		reviewPlan:   "Revise este plano 30 dias antes do embarque.",
		lodgingLink:  "Compare hospedagens em %s antes de reservar.",
		lodgingLabel: "Buscar hotéis",

		assumeNoMiles:    "Nenhum programa de milhas informado; o plano considera tarifas em dinheiro.",
		assumeNoBudget:   "Orçamento não informado; as sugestões não consideram um teto de gastos.",
		assumeNoDocs:     "Documentos de viagem não informados; verifique exigências de visto e passaporte.",
		assumeResilient:  "Plano gerado em modo de contingência resiliente, sem resposta do modelo de IA.",
		assumeMissingKey: "Configuração: defina a chave de API do provedor de IA para habilitar planos personalizados.",

		enums: map[string]string{
			"direto":      "diretos",
			"uma_escala":  "com até uma escala",
			"indiferente": "diretos ou com escala",
			"manha":       "manhã",
			"tarde":       "tarde",
			"noite":       "noite",
			"qualquer":    "qualquer horário",
			"mao":         "apenas de mão",
			"despachada":  "despachada",
			"multiplas":   "com várias malas despachadas",
			"economico":   "econômica",
			"conforto":    "confortável",
			"luxo":        "de luxo",
		},

		emergencyTitle:   "Plano de viagem",
		emergencySummary: "Não foi possível montar um plano personalizado agora; siga os passos gerais abaixo.",
		emergency: [4][3]string{
			{"Resumo", "Confira as datas e os destinos escolhidos.", "Defina quantos viajantes irão."},
			{"Passagens", "Compare tarifas em dinheiro e em milhas.", "Prefira tarifas com remarcação gratuita."},
			{"Hospedagem", "Reserve com cancelamento gratuito.", "Confirme a localização antes de pagar."},
			{"Próximos passos", "Verifique passaporte e vistos.", "Tente gerar o plano novamente mais tarde."},
		},
	},
	contract.LocaleEN: {
		title:   "Trip plan: %s → %s",
		summary: "Itinerary from %s to %s between %s and %s for %d traveller(s), with a redemption strategy, execution order and mapped risks.",
		sectionTitles: [5]string{
			"Trip summary",
			"Redemption strategy",
			"Execution order",
			"Risks and mitigations",
			"Next steps",
		},
		route:     "Route %s → %s, departing %s and returning %s.",
		group:     "Party of %d adult(s), %d child(ren) and %d infant(s), baggage %s.",
		flights:   "Flights %s, ideally in the %s.",
		flexNone:  "Fixed dates: prioritise exact availability on the chosen days.",
		flexSome:  "Flexibility of ±%d day(s): compare nearby dates before booking.",
		milesSome: "Compare the miles price in your programs (%s) against the cash fare before booking.",
		milesNone: "No loyalty programs provided: compare cash fares and consider a partner program of the carriers on this route.",
		banksSome: "Transfer points from %s only after confirming availability, taking advantage of transfer bonuses.",
		banksNone: "No bank points provided: check whether your current card earns transferable points.",
		nearDates: "Check award seat availability across more than one partner program.",

		docs:         "Confirm passports, visas and entry requirements for %s.",
		bookOrder:    "Book the highest-demand legs first, then the internal legs.",
		lodging:      "Book %s lodging with free cancellation.",
		lodgingNear:  "Book %s lodging with free cancellation, preferably in %s.",
		riskLow:      "Prefer refundable fares and connections of at least two hours.",
		riskMedium:   "Balance price and flexibility: accept short connections only on a single ticket.",
		riskHigh:     "Promo fares and separate tickets lower the cost but need buffer for disruptions.",
		schedule:     "Track airline schedule changes until the day of the flight.",
		insurance:    "Consider travel insurance covering delays and lost baggage.",
		searchFlight: "Search flights from %s to %s on the chosen dates.",
		searchLabel:  "Search flights",
		reviewPlan:   "Review this plan 30 days before departure.",
		lodgingLink:  "Compare places to stay in %s before booking.",
		lodgingLabel: "Search hotels",

		assumeNoMiles:    "No loyalty programs provided; the plan assumes cash fares.",
		assumeNoBudget:   "No budget provided; suggestions do not assume a spending cap.",
		assumeNoDocs:     "No travel documents provided; check visa and passport requirements.",
		assumeResilient:  "Plan generated in resilient fallback mode without an AI model response.",
		assumeMissingKey: "Configuration: set the AI provider API key to enable personalised plans.",

		enums: map[string]string{
			"direto":      "non-stop",
			"uma_escala":  "with at most one stop",
			"indiferente": "non-stop or with stops",
			"manha":       "morning",
			"tarde":       "afternoon",
			"noite":       "evening",
			"qualquer":    "any time of day",
			"mao":         "carry-on only",
			"despachada":  "checked",
			"multiplas":   "with several checked bags",
			"economico":   "budget",
			"conforto":    "comfortable",
			"luxo":        "luxury",
		},

		emergencyTitle:   "Trip plan",
		emergencySummary: "A personalised plan could not be built right now; follow the general steps below.",
		emergency: [4][3]string{
			{"Summary", "Double-check the chosen dates and destinations.", "Confirm how many people are travelling."},
			{"Flights", "Compare cash and miles fares.", "Prefer fares with free changes."},
			{"Lodging", "Book with free cancellation.", "Confirm the location before paying."},
			{"Next steps", "Check passports and visas.", "Try generating the plan again later."},
		},
	},
}

func templatesFor(locale contract.Locale) templates {
	if t, ok := byLocale[locale.Normalize()]; ok {
		return t
	}
	return byLocale[contract.DefaultLocale]
}
