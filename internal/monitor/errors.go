package monitor

import (
	"errors"
	"fmt"

	"github.com/afroash/env-monitor/internal/models"
)

var (
	// ErrEmptyHistory is returned when metrics are requested before any
	// reading has been stored
	ErrEmptyHistory = errors.New("no readings recorded yet")

	// ErrInvalidCount is returned when SampleMany is asked for fewer than one sample
	ErrInvalidCount = errors.New("sample count must be at least 1")
)

// InvalidLimitError reports a rejected SetLimit call. The policy is left
// unchanged when this is returned.
type InvalidLimitError struct {
	Kind   models.LimitKind
	Value  float64
	Reason string
}

func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("invalid %s limit %v: %s", e.Kind, e.Value, e.Reason)
}
