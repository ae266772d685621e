package magcal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeNormStats(t *testing.T) {
	stats := ComputeNormStats([]Sample{{X: 3, Y: 4}, {X: 0, Y: 1}, {X: -2, Y: 0}})

	assert.InDelta(t, 8.0/3, stats.Mean, 1e-12)
	assert.InDelta(t, 1.0, stats.Min, 1e-12)
	assert.InDelta(t, 5.0, stats.Max, 1e-12)
	assert.InDelta(t, math.Sqrt(((5-8.0/3)*(5-8.0/3)+(1-8.0/3)*(1-8.0/3)+(2-8.0/3)*(2-8.0/3))/2), stats.StdDev, 1e-12)
	assert.InDelta(t, 5.0/3, stats.Deviation(), 1e-12)
}

func TestComputeNormStats_Degenerate(t *testing.T) {
	assert.Equal(t, NormStats{}, ComputeNormStats(nil))

	single := ComputeNormStats([]Sample{{X: 0, Y: 2}})
	assert.Equal(t, NormStats{Mean: 2, StdDev: 0, Min: 2, Max: 2}, single)
}

func TestValidateSamples_MessageCapsIndices(t *testing.T) {
	samples := make([]Sample, 15)
	for i := range samples {
		samples[i] = Sample{X: math.NaN()}
	}
	err := ValidateSamples(samples)

	var invalid *InvalidSampleError
	if assert.ErrorAs(t, err, &invalid) {
		assert.Len(t, invalid.Indices, 15)
		assert.Contains(t, err.Error(), "15 of 15")
		assert.Contains(t, err.Error(), "(5 more)")
	}
}
