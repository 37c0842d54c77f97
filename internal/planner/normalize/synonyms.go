package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
)

// foldKey lowercases, strips diacritics and joins words with '_', so
// "Visão Geral", "visao-geral" and "visao_geral" compare equal.
func foldKey(s string) string {
	return strings.Join(strings.FieldsFunc(foldText(s), func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	}), "_")
}

// foldText lowercases and strips diacritics, keeping everything else.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// Synonym lists are already folded.
var (
	titleKeys = []string{"title", "titulo", "name", "nome", "heading", "cabecalho"}

	summaryKeys = []string{"summary", "resumo", "overview", "visao_geral", "sintese", "description", "descricao", "introducao", "intro"}

	assumptionKeys = []string{"assumptions", "assuncoes", "premissas", "suposicoes", "hipoteses", "notes", "notas", "observacoes", "caveats"}

	sectionsKeys = []string{"sections", "secoes", "sessoes", "partes", "blocos"}

	sectionTitleKeys = []string{"title", "titulo", "heading", "cabecalho", "name", "nome"}

	itemsKeys = []string{"items", "itens", "bullets", "points", "pontos", "steps", "passos", "entries", "content", "conteudo"}

	itemTextKeys = []string{"text", "texto", "title", "titulo", "label", "rotulo", "description", "descricao"}

	itemTagKeys = []string{"tag", "tipo", "type", "kind", "category", "categoria"}

	itemLinksKeys = []string{"links", "link", "actions", "acoes", "urls"}

	linkLabelKeys = []string{"label", "rotulo", "text", "texto", "title", "titulo", "name", "nome"}

	linkURLKeys = []string{"url", "href", "link", "uri"}

	linkTypeKeys = []string{"type", "tipo", "kind"}

	// Wrapper keys some models put around the whole report.
	wrapperKeys = []string{"report", "relatorio", "plan", "plano", "planner_report", "data", "result", "resultado"}
)

// reservedKeys is the explicit allowlist of top-level names never turned
// into implicit sections: every report field synonym plus envelope metadata.
var reservedKeys = func() map[string]bool {
	m := map[string]bool{}
	for _, list := range [][]string{titleKeys, summaryKeys, assumptionKeys, sectionsKeys, wrapperKeys} {
		for _, k := range list {
			m[k] = true
		}
	}
	for _, k := range []string{
		"mode", "modo", "locale", "idioma", "language", "lang",
		"schema_version", "schemaversion", "version", "versao",
		"generated_at", "generatedat", "created_at", "model", "modelo",
		"metadata", "meta", "id", "plan_id", "planid",
		"error", "errors", "erro", "warnings", "sources", "fontes", "references", "referencias",
	} {
		m[k] = true
	}
	return m
}()

var tagSynonyms = map[string]contract.ItemTag{
	"tip": contract.TagTip, "tips": contract.TagTip, "dica": contract.TagTip, "dicas": contract.TagTip,
	"hint": contract.TagTip, "sugestao": contract.TagTip, "suggestion": contract.TagTip,

	"warning": contract.TagWarning, "warn": contract.TagWarning, "alerta": contract.TagWarning,
	"aviso": contract.TagWarning, "atencao": contract.TagWarning, "caution": contract.TagWarning,
	"risk": contract.TagWarning, "risco": contract.TagWarning, "cuidado": contract.TagWarning,

	"action": contract.TagAction, "acao": contract.TagAction, "todo": contract.TagAction,
	"step": contract.TagAction, "passo": contract.TagAction, "tarefa": contract.TagAction, "task": contract.TagAction,

	"info": contract.TagInfo, "information": contract.TagInfo, "informacao": contract.TagInfo,
	"note": contract.TagInfo, "nota": contract.TagInfo, "observacao": contract.TagInfo, "fyi": contract.TagInfo,
}

var linkTypeSynonyms = map[string]contract.LinkType{
	"search": contract.LinkSearch, "busca": contract.LinkSearch, "buscar": contract.LinkSearch,
	"pesquisa": contract.LinkSearch, "pesquisar": contract.LinkSearch, "find": contract.LinkSearch,

	"book": contract.LinkBook, "booking": contract.LinkBook, "reserva": contract.LinkBook,
	"reservar": contract.LinkBook, "comprar": contract.LinkBook, "buy": contract.LinkBook, "emitir": contract.LinkBook,

	"info": contract.LinkInfo, "informacao": contract.LinkInfo, "details": contract.LinkInfo, "detalhes": contract.LinkInfo,

	"map": contract.LinkMap, "maps": contract.LinkMap, "mapa": contract.LinkMap,
	"directions": contract.LinkMap, "rota": contract.LinkMap, "location": contract.LinkMap, "localizacao": contract.LinkMap,
}

// Title prefixes kept verbatim when a key becomes a section title.
var guidePrefixes = []struct {
	folded    string
	canonical string
}{
	{"quick guide:", "Quick guide:"},
	{"guia rapido:", "Guia rápido:"},
}

type defaults struct {
	title        string
	summary      string
	proseSection string
}

var localeDefaults = map[contract.Locale]defaults{
	contract.LocalePT: {
		title:        "Plano de viagem",
		summary:      "Plano montado a partir das suas preferências de viagem.",
		proseSection: "Recomendações",
	},
	contract.LocaleEN: {
		title:        "Trip plan",
		summary:      "Plan assembled from your travel preferences.",
		proseSection: "Recommendations",
	},
}

func defaultsFor(locale contract.Locale) defaults {
	if d, ok := localeDefaults[locale.Normalize()]; ok {
		return d
	}
	return localeDefaults[contract.DefaultLocale]
}
