package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

type FieldIssue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed. Field names are wire names,
// dotted for nested values ("sections[0].items[1].text").
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Field+": "+is.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field is among the failing fields.
func (e *ValidationError) Has(field string) bool {
	if e == nil {
		return false
	}
	for _, is := range e.Issues {
		if is.Field == field {
			return true
		}
	}
	return false
}

func invalid(field, rule, msg string) *ValidationError {
	return &ValidationError{Issues: []FieldIssue{{Field: field, Rule: rule, Message: msg}}}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			_, ok := parseDate(fl.Field().String())
			return ok
		})
		_ = v.RegisterValidation("absurl", func(fl validator.FieldLevel) bool {
			return IsAbsoluteURL(fl.Field().String())
		})
		v.RegisterStructValidation(preferencesLevel, TravelPreferences{})
		v.RegisterStructValidation(reportItemLevel, ReportItem{})
		validate = v
	})
	return validate
}

func parseDate(s string) (time.Time, bool) {
	if len(s) != len(dateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsAbsoluteURL accepts http(s) URLs with a host.
func IsAbsoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func preferencesLevel(sl validator.StructLevel) {
	p := sl.Current().Interface().(TravelPreferences)
	dep, okDep := parseDate(p.DepartureDate)
	ret, okRet := parseDate(p.ReturnDate)
	if okDep && okRet && ret.Before(dep) {
		sl.ReportError(p.ReturnDate, "data_volta", "ReturnDate", "afterdeparture", "data_ida")
	}
}

func reportItemLevel(sl validator.StructLevel) {
	item := sl.Current().Interface().(ReportItem)
	if item.Structured != nil {
		return
	}
	n := utf8.RuneCountInString(item.Text)
	if n < ItemTextMin || n > ItemTextMax {
		sl.ReportError(item.Text, "text", "Text", "itemtext", fmt.Sprintf("%d-%d", ItemTextMin, ItemTextMax))
	}
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Issues: make([]FieldIssue, 0, len(verrs))}
	for _, fe := range verrs {
		out.Issues = append(out.Issues, FieldIssue{
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Message: issueMessage(fe),
		})
	}
	return out
}

// fieldPath drops the root type name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ReplaceAll(ns, ".Structured", "")
}

func issueMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if isString {
			return "must be at least " + fe.Param() + " characters"
		}
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " entries"
		}
		return "must be >= " + fe.Param()
	case "max":
		if isString {
			return "must be at most " + fe.Param() + " characters"
		}
		if fe.Kind() == reflect.Slice {
			return "must contain at most " + fe.Param() + " entries"
		}
		return "must be <= " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "isodate":
		return "must be a calendar date formatted YYYY-MM-DD"
	case "afterdeparture":
		return "must be on or after " + fe.Param()
	case "absurl":
		return "must be an absolute http(s) URL"
	case "itemtext":
		return "must be " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}

// decodeStrict decodes exactly one JSON value, rejecting unknown fields and trailing data.
func decodeStrict(r io.Reader, out any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return decodeIssue(err)
	}
	if dec.More() {
		return invalid("body", "json", "must contain a single JSON value")
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return invalid("body", "json", "must contain a single JSON value")
	}
	return nil
}

func decodeIssue(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return invalid("body", "size", fmt.Sprintf("must not exceed %d bytes", tooLarge.Limit))
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return invalid(field, "type", "must be a "+typeErr.Type.Kind().String())
	}
	var synErr *json.SyntaxError
	if errors.As(err, &synErr) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return invalid("body", "json", "must be valid JSON")
	}
	msg := err.Error()
	if strings.HasPrefix(msg, "json: unknown field ") {
		name := strings.Trim(strings.TrimPrefix(msg, "json: unknown field "), `"`)
		return invalid(name, "unknown", "is not a recognized field")
	}
	return invalid("body", "json", msg)
}

// ValidatePreferences decodes and validates a standalone preferences object.
func ValidatePreferences(raw []byte) (TravelPreferences, error) {
	var p TravelPreferences
	if err := decodeStrict(bytes.NewReader(raw), &p); err != nil {
		return TravelPreferences{}, err
	}
	return CheckPreferences(p)
}

// CheckPreferences validates an already decoded value and returns its trimmed form.
func CheckPreferences(p TravelPreferences) (TravelPreferences, error) {
	p = p.Trimmed()
	if err := validatorInstance().Struct(p); err != nil {
		return TravelPreferences{}, toValidationError(err)
	}
	return p, nil
}

// DecodeRequest reads a generation request body. The locale defaults to pt.
func DecodeRequest(r io.Reader) (GenerateRequest, error) {
	var req GenerateRequest
	if err := decodeStrict(r, &req); err != nil {
		return GenerateRequest{}, err
	}
	req.Locale = req.Locale.Normalize()
	req.Source = strings.TrimSpace(req.Source)
	req.Preferences = req.Preferences.Trimmed()
	if err := validatorInstance().Struct(req); err != nil {
		return GenerateRequest{}, toValidationError(err)
	}
	return req, nil
}

// ValidateReport decodes and validates report JSON.
func ValidateReport(raw []byte) (PlannerReport, error) {
	var r PlannerReport
	if err := decodeStrict(bytes.NewReader(raw), &r); err != nil {
		return PlannerReport{}, err
	}
	return CheckReport(r)
}

// CheckReport validates a report value and returns its trimmed form.
func CheckReport(r PlannerReport) (PlannerReport, error) {
	r = r.Trimmed()
	if err := validatorInstance().Struct(r); err != nil {
		return PlannerReport{}, toValidationError(err)
	}
	return r, nil
}
