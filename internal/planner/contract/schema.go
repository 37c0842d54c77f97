package contract

// SchemaName identifies the report schema in structured-output requests.
const SchemaName = "planner_report"

func stringSchema(min, max int) map[string]any {
	return map[string]any{"type": "string", "minLength": min, "maxLength": max}
}

func enumSchema(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

// ReportJSONSchema returns the JSON Schema of PlannerReport. A fresh map is
// built on every call so callers may mutate it.
func ReportJSONSchema() map[string]any {
	link := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"label", "url", "type"},
		"properties": map[string]any{
			"label": stringSchema(LinkLabelMin, LinkLabelMax),
			"url":   map[string]any{"type": "string", "format": "uri", "maxLength": LinkURLMax},
			"type":  enumSchema(string(LinkSearch), string(LinkBook), string(LinkInfo), string(LinkMap)),
		},
	}
	structured := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"text"},
		"properties": map[string]any{
			"text": stringSchema(ItemTextMin, ItemTextMax),
			"tag":  enumSchema(string(TagTip), string(TagWarning), string(TagAction), string(TagInfo)),
			"links": map[string]any{
				"type":     "array",
				"maxItems": LinksMax,
				"items":    link,
			},
		},
	}
	section := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"title", "items"},
		"properties": map[string]any{
			"title": stringSchema(SectionTitleMin, SectionTitleMax),
			"items": map[string]any{
				"type":     "array",
				"minItems": ItemsMin,
				"maxItems": ItemsMax,
				"items": map[string]any{
					"anyOf": []any{stringSchema(ItemTextMin, ItemTextMax), structured},
				},
			},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             ReportRequiredFields(),
		"properties":           ReportProperties(section),
	}
}

// ReportRequiredFields lists the top-level keys every report carries.
func ReportRequiredFields() []string {
	return []string{"title", "summary", "sections", "assumptions"}
}

// ReportProperties returns the top-level property schemas. Tool-style APIs
// take properties and required separately, so they are exposed on their own.
func ReportProperties(section map[string]any) map[string]any {
	if section == nil {
		return ReportJSONSchema()["properties"].(map[string]any)
	}
	return map[string]any{
		"title":   stringSchema(TitleMin, TitleMax),
		"summary": stringSchema(SummaryMin, SummaryMax),
		"sections": map[string]any{
			"type":     "array",
			"minItems": SectionsMin,
			"maxItems": SectionsMax,
			"items":    section,
		},
		"assumptions": map[string]any{
			"type":     "array",
			"maxItems": AssumptionsMax,
			"items":    stringSchema(AssumptionMin, AssumptionMax),
		},
	}
}
