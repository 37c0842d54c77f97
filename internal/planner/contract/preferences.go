package contract

import "strings"

type Locale string

const (
	LocalePT Locale = "pt"
	LocaleEN Locale = "en"

	DefaultLocale = LocalePT
)

// Normalize maps "", "pt-BR", "EN_us" style values onto a supported locale.
// Unsupported values are returned lowercased so validation can reject them.
func (l Locale) Normalize() Locale {
	s := strings.ToLower(strings.TrimSpace(string(l)))
	if s == "" {
		return DefaultLocale
	}
	if i := strings.IndexAny(s, "-_"); i > 0 {
		s = s[:i]
	}
	return Locale(s)
}

type FlightPreference string

const (
	FlightDirect      FlightPreference = "direto"
	FlightOneStop     FlightPreference = "uma_escala"
	FlightIndifferent FlightPreference = "indiferente"
)

type FlightWindow string

const (
	WindowMorning   FlightWindow = "manha"
	WindowAfternoon FlightWindow = "tarde"
	WindowNight     FlightWindow = "noite"
	WindowAny       FlightWindow = "qualquer"
)

type Baggage string

const (
	BaggageCabin    Baggage = "mao"
	BaggageChecked  Baggage = "despachada"
	BaggageMultiple Baggage = "multiplas"
)

type RiskTolerance string

const (
	RiskLow    RiskTolerance = "baixa"
	RiskMedium RiskTolerance = "media"
	RiskHigh   RiskTolerance = "alta"
)

type LodgingProfile string

const (
	LodgingBudget  LodgingProfile = "economico"
	LodgingComfort LodgingProfile = "conforto"
	LodgingLuxury  LodgingProfile = "luxo"
)

// TravelPreferences is the traveller's input. Wire keys are the Portuguese
// names the form posts.
type TravelPreferences struct {
	DepartureDate string `json:"data_ida" validate:"required,isodate"`
	ReturnDate    string `json:"data_volta" validate:"required,isodate"`
	FlexDays      int    `json:"flex_dias" validate:"min=0,max=30"`

	Origins      string `json:"origens" validate:"min=2,max=200"`
	Destinations string `json:"destinos" validate:"min=2,max=200"`

	Adults   int `json:"num_adultos" validate:"min=1,max=9"`
	Children int `json:"num_chd" validate:"min=0,max=9"`
	Infants  int `json:"num_bebes" validate:"min=0,max=9"`

	FlightPreference FlightPreference `json:"preferencia_voo" validate:"oneof=direto uma_escala indiferente"`
	FlightWindow     FlightWindow     `json:"horarios_voo" validate:"oneof=manha tarde noite qualquer"`
	Baggage          Baggage          `json:"bagagem" validate:"oneof=mao despachada multiplas"`

	MilesPrograms string `json:"programas_milhas,omitempty" validate:"max=300"`
	BankPrograms  string `json:"programas_bancos,omitempty" validate:"max=300"`
	Visas         string `json:"vistos_existentes,omitempty" validate:"max=300"`
	BudgetBRL     string `json:"orcamento_brl,omitempty" validate:"max=120"`

	RiskTolerance  RiskTolerance  `json:"tolerancia_risco" validate:"oneof=baixa media alta"`
	LodgingProfile LodgingProfile `json:"perfil_hospedagem" validate:"oneof=economico conforto luxo"`

	Neighborhoods string `json:"bairros_preferidos,omitempty" validate:"max=300"`
	Profile       string `json:"perfil,omitempty" validate:"max=500"`
	Constraints   string `json:"restricoes,omitempty" validate:"max=500"`
}

// Trimmed returns a copy with surrounding whitespace removed from every string field.
func (p TravelPreferences) Trimmed() TravelPreferences {
	out := p
	for _, s := range []*string{
		&out.DepartureDate, &out.ReturnDate, &out.Origins, &out.Destinations,
		&out.MilesPrograms, &out.BankPrograms, &out.Visas, &out.BudgetBRL,
		&out.Neighborhoods, &out.Profile, &out.Constraints,
	} {
		*s = strings.TrimSpace(*s)
	}
	out.FlightPreference = FlightPreference(strings.TrimSpace(string(out.FlightPreference)))
	out.FlightWindow = FlightWindow(strings.TrimSpace(string(out.FlightWindow)))
	out.Baggage = Baggage(strings.TrimSpace(string(out.Baggage)))
	out.RiskTolerance = RiskTolerance(strings.TrimSpace(string(out.RiskTolerance)))
	out.LodgingProfile = LodgingProfile(strings.TrimSpace(string(out.LodgingProfile)))
	return out
}

// Travellers is the total passenger count.
func (p TravelPreferences) Travellers() int {
	return p.Adults + p.Children + p.Infants
}

// GenerateRequest is the body of both generation endpoints.
type GenerateRequest struct {
	Locale      Locale            `json:"locale" validate:"oneof=pt en"`
	Source      string            `json:"source,omitempty" validate:"max=64"`
	Preferences TravelPreferences `json:"preferences"`
}
