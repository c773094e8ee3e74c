package extract

import (
	"errors"
	"fmt"
)

var (
	ErrNoPatternMatch       = errors.New("no extraction rule matched")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidDate          = errors.New("invalid date")
)

// ExtractionError carries the rule and field a snippet failed on
type ExtractionError struct {
	Rule  string // Winning rule, empty for ErrNoPatternMatch
	Field string // Offending field, when one applies
	Err   error
}

func (e *ExtractionError) Error() string {
	switch {
	case e.Field != "" && e.Rule != "":
		return fmt.Sprintf("rule %s: %v: %s", e.Rule, e.Err, e.Field)
	case e.Field != "":
		return fmt.Sprintf("%v: %s", e.Err, e.Field)
	case e.Rule != "":
		return fmt.Sprintf("rule %s: %v", e.Rule, e.Err)
	}
	return e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Reason returns a short label for err suitable for metrics and reports
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNoPatternMatch):
		return "no_pattern_match"
	case errors.Is(err, ErrMissingRequiredField):
		return "missing_required_field"
	case errors.Is(err, ErrInvalidDate):
		return "invalid_date"
	}
	return "other"
}

func missingField(rule, field string) error {
	return &ExtractionError{Rule: rule, Field: field, Err: ErrMissingRequiredField}
}
