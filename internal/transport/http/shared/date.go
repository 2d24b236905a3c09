package shared

import (
	"strings"
	"time"

	"kpieval/internal/domain/evaluation"
)

// ParseDate accepts RFC3339 or YYYY-MM-DD. Empty input yields the zero time.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse(time.DateOnly, value)
}

// ParseOptionalTime parses an activity window bound; "" and null mean
// unbounded.
func ParseOptionalTime(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := ParseDate(*value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// ParseWindowEnd is ParseOptionalTime for an inclusive window end: a bare
// date runs to the end of that day.
func ParseWindowEnd(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(*value)
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	end := evaluation.EndOfDay(day)
	return &end, nil
}
