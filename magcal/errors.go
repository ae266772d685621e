package magcal

import (
	"errors"
	"fmt"
	"strings"
)

// MinSamples is the smallest batch that determines the affine fit.
const MinSamples = 3

var (
	ErrInvalidIterations = errors.New("iteration count must be at least 1")
	ErrEmptySequence     = errors.New("empty sequence")
	ErrLengthMismatch    = errors.New("sequence lengths differ")
	ErrWindowOutOfRange  = errors.New("window out of range")
	ErrNotConnected      = errors.New("MQTT client not connected")
)

// InsufficientDataError is returned when too few samples are supplied to
// determine the least-squares system.
type InsufficientDataError struct {
	Count    int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: got %d samples, need at least %d", e.Count, e.Required)
}

// InvalidSampleError is returned when samples contain NaN or Inf.
type InvalidSampleError struct {
	Count   int   // total samples supplied
	Indices []int // offending sample indices
}

// maxReportedIndices caps how many indices the message lists
const maxReportedIndices = 10

func (e *InvalidSampleError) Error() string {
	shown := e.Indices
	suffix := ""
	if len(shown) > maxReportedIndices {
		shown = shown[:maxReportedIndices]
		suffix = fmt.Sprintf(", ... (%d more)", len(e.Indices)-maxReportedIndices)
	}
	parts := make([]string, len(shown))
	for i, idx := range shown {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	return fmt.Sprintf("invalid samples: %d of %d non-finite at indices [%s%s]",
		len(e.Indices), e.Count, strings.Join(parts, ", "), suffix)
}

// ValidateSamples checks the batch size and that every coordinate is finite.
func ValidateSamples(samples []Sample) error {
	if len(samples) < MinSamples {
		return &InsufficientDataError{Count: len(samples), Required: MinSamples}
	}
	var bad []int
	for i, s := range samples {
		if !isFinite(s.X) || !isFinite(s.Y) {
			bad = append(bad, i)
		}
	}
	if len(bad) > 0 {
		return &InvalidSampleError{Count: len(samples), Indices: bad}
	}
	return nil
}
