package shared

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"kpieval/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type Validator struct {
	issues []ValidationIssue
}

func NewValidator() *Validator {
	return &Validator{issues: make([]ValidationIssue, 0, 4)}
}

func (v *Validator) Add(field, reason string) {
	reason = strings.TrimSpace(reason)
	if v == nil || reason == "" {
		return
	}
	v.issues = append(v.issues, ValidationIssue{Field: strings.TrimSpace(field), Reason: reason})
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

// Enum matches exactly; workflow enums are upper-case wire constants.
func (v *Validator) Enum(field, value string, allowed []string, reason string) {
	if value == "" || slices.Contains(allowed, value) {
		return
	}
	v.Add(field, reason)
}

func (v *Validator) Positive(field string, value int64) {
	if value <= 0 {
		v.Add(field, "must be a positive id")
	}
}

func (v *Validator) Date(field, raw string) (time.Time, bool) {
	parsed, err := ParseDate(raw)
	if err != nil || parsed.IsZero() {
		v.Add(field, "must be a valid date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return parsed, true
}

func (v *Validator) OptionalTime(field string, raw *string) *time.Time {
	parsed, err := ParseOptionalTime(raw)
	if err != nil {
		v.Add(field, "must be RFC3339 or YYYY-MM-DD")
		return nil
	}
	return parsed
}

func (v *Validator) OptionalEnd(field string, raw *string) *time.Time {
	parsed, err := ParseWindowEnd(raw)
	if err != nil {
		v.Add(field, "must be RFC3339 or YYYY-MM-DD")
		return nil
	}
	return parsed
}

func (v *Validator) DateOrder(startField string, start time.Time, endField string, end time.Time) {
	if start.IsZero() || end.IsZero() {
		return
	}
	if end.Before(start) {
		v.Add(startField, "must be on or before "+endField)
		v.Add(endField, "must be on or after "+startField)
	}
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.issues) > 0
}

func (v *Validator) Issues() []ValidationIssue {
	if !v.HasIssues() {
		return nil
	}
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b ValidationIssue) int {
		if c := strings.Compare(a.Field, b.Field); c != 0 {
			return c
		}
		return strings.Compare(a.Reason, b.Reason)
	})
	return out
}

func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Issues())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	api.FailWithDetails(w, http.StatusBadRequest, "invalid_payload", "payload validation failed",
		map[string]any{"fields": issues}, requestID)
}
