package magcal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultAlignmentConfig returns the trim and window used for the
// reference recording.
func DefaultAlignmentConfig() AlignmentConfig {
	return AlignmentConfig{Trim: 175, Window: 2750}
}

// Window returns xs[start:start+length]. A length of 0 runs to the end and a
// window running past the end is clamped.
func Window(xs []float64, start, length int) ([]float64, error) {
	if start < 0 || start >= len(xs) || length < 0 {
		return nil, fmt.Errorf("window [%d, +%d) of %d samples: %w", start, length, len(xs), ErrWindowOutOfRange)
	}
	end := len(xs)
	if length > 0 {
		end = min(start+length, len(xs))
	}
	return xs[start:end], nil
}

// AlignWindows cuts matching comparison windows from the magnetic and
// reference heading sequences. The reference window starts
// cfg.ReferenceShift samples after the magnetic one. Both windows are
// truncated to the shorter of the two.
func AlignWindows(mag, ref []float64, cfg AlignmentConfig) ([]float64, []float64, error) {
	magWin, err := Window(mag, cfg.Trim, cfg.Window)
	if err != nil {
		return nil, nil, fmt.Errorf("magnetic heading: %w", err)
	}
	refWin, err := Window(ref, cfg.Trim+cfg.ReferenceShift, cfg.Window)
	if err != nil {
		return nil, nil, fmt.Errorf("reference heading: %w", err)
	}

	n := min(len(magWin), len(refWin))
	return magWin[:n], refWin[:n], nil
}

// CompareHeadings computes error statistics of mag against ref over their
// common length. Differences are wrapped into [-180, 180) first.
func CompareHeadings(mag, ref []float64) (HeadingComparison, error) {
	n := min(len(mag), len(ref))
	if n == 0 {
		return HeadingComparison{}, fmt.Errorf("comparing headings: %w", ErrEmptySequence)
	}

	diffs := make([]float64, n)
	abs := make([]float64, n)
	for i := range diffs {
		diffs[i] = AngleDiff(mag[i], ref[i])
		abs[i] = math.Abs(diffs[i])
	}

	return HeadingComparison{
		Samples:      n,
		MeanError:    stat.Mean(diffs, nil),
		MeanAbsError: stat.Mean(abs, nil),
		RMSError:     math.Sqrt(floats.Dot(diffs, diffs) / float64(n)),
		MaxAbsError:  floats.Max(abs),
	}, nil
}
