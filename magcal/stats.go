package magcal

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Norms returns the Euclidean norm of every sample
func Norms(samples []Sample) []float64 {
	norms := make([]float64, len(samples))
	for i, s := range samples {
		norms[i] = math.Hypot(s.X, s.Y)
	}
	return norms
}

// ComputeNormStats summarises the norms of samples. An empty slice yields
// the zero value.
func ComputeNormStats(samples []Sample) NormStats {
	if len(samples) == 0 {
		return NormStats{}
	}

	norms := Norms(samples)
	mean, std := stat.MeanStdDev(norms, nil)
	if len(norms) == 1 {
		std = 0
	}
	return NormStats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(norms),
		Max:    floats.Max(norms),
	}
}

// Deviation is the distance of the mean norm from the unit circle
func (s NormStats) Deviation() float64 {
	return math.Abs(s.Mean - 1)
}
