package magcal

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultIterations is the number of refinement passes when none is configured
	DefaultIterations = 10

	// DefaultOutlierNorm is the working-set norm above which a sample is
	// considered an outlier when rejection is enabled.
	DefaultOutlierNorm = 1.05

	// fullRank is the rank of a well-posed [x y 1] design matrix
	fullRank = 3
)

// DefaultCalibrationConfig returns the reference calibration settings:
// ten passes, outlier rejection off.
func DefaultCalibrationConfig() CalibrationConfig {
	return CalibrationConfig{
		Iterations:  DefaultIterations,
		OutlierNorm: DefaultOutlierNorm,
	}
}

// CalibrateN runs Calibrate with default settings and the given iteration count.
func CalibrateN(samples []Sample, iterations int) (*CalibrationResult, error) {
	cfg := DefaultCalibrationConfig()
	cfg.Iterations = iterations
	return Calibrate(samples, cfg)
}

// Calibrate estimates the affine transform that maps raw magnetometer samples
// onto the unit circle.
//
// The samples are first centred on their mean. Each pass then fits, by least
// squares, the affine map taking every working sample onto its own direction
// (y/|y|), applies it to the working set and composes it into the running
// transform. The number of passes is fixed; there is no convergence test.
//
// Rank-deficient passes are not errors. The lowest rank seen is returned in
// the result and logged.
func Calibrate(samples []Sample, cfg CalibrationConfig) (*CalibrationResult, error) {
	start := time.Now()

	if cfg.Iterations < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIterations, cfg.Iterations)
	}
	if err := ValidateSamples(samples); err != nil {
		return nil, err
	}
	outlierNorm := cfg.OutlierNorm
	if outlierNorm <= 0 {
		outlierNorm = DefaultOutlierNorm
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i], ys[i] = s.X, s.Y
	}
	total := Transform{A11: 1, A22: 1, B1: -stat.Mean(xs, nil), B2: -stat.Mean(ys, nil)}
	working := total.ApplyAll(samples)

	result := &CalibrationResult{
		Rank:       fullRank,
		Iterations: make([]IterationStats, 0, cfg.Iterations),
		Before:     ComputeNormStats(samples),
	}

	for k := 0; k < cfg.Iterations; k++ {
		norms := Norms(working)
		rows := fitRows(norms, cfg.RejectOutliers && k > 0, outlierNorm)
		design, target := buildSystem(working, norms, rows)

		step, rank, err := solveAffine(design, target, cfg.RCond)
		if err != nil {
			return nil, fmt.Errorf("calibration iteration %d: %w", k+1, err)
		}

		stats := IterationStats{
			Iteration: k + 1,
			Rank:      rank,
			Rows:      len(rows),
			Excluded:  len(working) - len(rows),
			MeanNorm:  stat.Mean(norms, nil),
		}
		result.Iterations = append(result.Iterations, stats)
		if rank < result.Rank {
			result.Rank = rank
		}

		log.WithFields(log.Fields{
			"iteration": stats.Iteration,
			"rank":      stats.Rank,
			"rows":      stats.Rows,
			"excluded":  stats.Excluded,
			"meanNorm":  stats.MeanNorm,
		}).Debug("calibration pass")

		working = step.ApplyAll(working)
		total = total.Then(step)
	}

	if result.Rank < fullRank {
		log.WithField("rank", result.Rank).Warn("calibration design matrix was rank deficient; returning minimum-norm fit")
	}

	result.Transform = total
	result.After = ComputeNormStats(total.ApplyAll(samples))
	result.Elapsed = time.Since(start)
	return result, nil
}

// fitRows selects the working samples that take part in a pass. Zero-norm
// samples have no direction and are left out, as are samples beyond
// outlierNorm when rejection is on, provided at least MinSamples rows
// remain. Otherwise the filter falls back to the wider set.
func fitRows(norms []float64, rejectOutliers bool, outlierNorm float64) []int {
	nonZero := make([]int, 0, len(norms))
	for i, n := range norms {
		if n > 0 {
			nonZero = append(nonZero, i)
		}
	}
	if len(nonZero) < MinSamples {
		all := make([]int, len(norms))
		for i := range all {
			all[i] = i
		}
		return all
	}
	if !rejectOutliers {
		return nonZero
	}

	inliers := make([]int, 0, len(nonZero))
	for _, i := range nonZero {
		if norms[i] <= outlierNorm {
			inliers = append(inliers, i)
		}
	}
	if len(inliers) < MinSamples {
		log.WithFields(log.Fields{
			"inliers":     len(inliers),
			"outlierNorm": outlierNorm,
		}).Warn("too few samples within outlier norm, fitting all samples")
		return nonZero
	}
	return inliers
}

// buildSystem assembles the design rows [x y 1] and unit-direction targets
// for the selected working samples. A zero-norm sample targets the origin.
func buildSystem(working []Sample, norms []float64, rows []int) (*mat.Dense, *mat.Dense) {
	design := mat.NewDense(len(rows), 3, nil)
	target := mat.NewDense(len(rows), 2, nil)
	for r, i := range rows {
		y := working[i]
		design.SetRow(r, []float64{y.X, y.Y, 1})
		if n := norms[i]; n > 0 {
			target.SetRow(r, []float64{y.X / n, y.Y / n})
		}
	}
	return design, target
}
