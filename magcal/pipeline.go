package magcal

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Analysis holds every intermediate product of one calibration run
type Analysis struct {
	Raw        []Sample
	Calibrated []Sample
	Headings   []float64 // magnetic heading per sample, not unwrapped
	Reference  []float64 // reference heading per sample, nil without one

	// Aligned and unwrapped comparison windows
	HeadingWindow   []float64
	ReferenceWindow []float64
	ReferenceShift  int // shift applied to the reference window

	Correlation []float64 // full correlation of Headings against Reference

	Calibration *CalibrationResult
	Lag         *LagResult
	Comparison  *HeadingComparison
}

// Analyze calibrates the recording and, when it carries a reference
// heading, compares the calibrated magnetic heading against it.
func Analyze(rec *Recording, cfg *Config) (*Analysis, error) {
	if rec == nil {
		return nil, fmt.Errorf("analyzing recording: %w", ErrEmptySequence)
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	cal, err := Calibrate(rec.Samples, cfg.Calibration)
	if err != nil {
		return nil, fmt.Errorf("calibrating: %w", err)
	}
	log.WithFields(log.Fields{
		"samples":  len(rec.Samples),
		"rank":     cal.Rank,
		"elapsed":  cal.Elapsed,
		"meanNorm": cal.After.Mean,
		"rawNorm":  cal.Before.Mean,
		"passes":   len(cal.Iterations),
	}).Info("calibration complete")

	a := &Analysis{
		Raw:         rec.Samples,
		Calibrated:  cal.Transform.ApplyAll(rec.Samples),
		Calibration: cal,
	}
	a.Headings = Headings(a.Calibrated, cfg.Heading.Offset)

	if !rec.HasReference() {
		return a, nil
	}
	if len(rec.Reference) != len(rec.Samples) {
		log.WithFields(log.Fields{
			"samples":   len(rec.Samples),
			"reference": len(rec.Reference),
		}).Warn("reference length differs from sample count")
	}
	a.Reference = rec.Reference

	mag, ref := a.Headings, a.Reference
	if cfg.Alignment.RemoveMean {
		mag, ref = RemoveMean(mag), RemoveMean(ref)
	}
	a.Correlation = CrossCorrelate(mag, ref)
	lag := peakLag(a.Correlation, len(ref))
	a.Lag = &lag
	log.WithFields(log.Fields{"lag": lag.Lag, "peak": lag.Peak}).Info("estimated heading lag")

	align := cfg.Alignment
	if align.AutoShift {
		// mag[n] ≈ ref[n-lag], so the reference window starts lag samples earlier
		align.ReferenceShift = -lag.Lag
	}
	a.ReferenceShift = align.ReferenceShift

	magWin, refWin, err := AlignWindows(a.Headings, a.Reference, align)
	if err != nil {
		return nil, fmt.Errorf("aligning headings: %w", err)
	}
	a.HeadingWindow = Unwrap(magWin, cfg.Unwrap.Threshold)
	a.ReferenceWindow = Unwrap(refWin, cfg.Unwrap.Threshold)

	cmp, err := CompareHeadings(a.HeadingWindow, a.ReferenceWindow)
	if err != nil {
		return nil, fmt.Errorf("comparing headings: %w", err)
	}
	a.Comparison = &cmp
	log.WithFields(log.Fields{
		"window":       cmp.Samples,
		"meanAbsError": cmp.MeanAbsError,
		"rmsError":     cmp.RMSError,
	}).Info("heading comparison complete")

	return a, nil
}
