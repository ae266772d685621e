package magcal

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossCorrelate_Small(t *testing.T) {
	// Matches numpy/scipy correlate(a, b, mode="full").
	got := CrossCorrelate([]float64{1, 2, 3}, []float64{0, 1, 0.5})
	assert.InDeltaSlice(t, []float64{0.5, 2, 3.5, 3, 0}, got, 1e-12)

	got = CrossCorrelate([]float64{1, 2}, []float64{3})
	assert.InDeltaSlice(t, []float64{3, 6}, got, 1e-12)

	assert.Nil(t, CrossCorrelate(nil, []float64{1}))
	assert.Nil(t, CrossCorrelate([]float64{1}, nil))
}

func TestCrossCorrelate_FFTMatchesDirect(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tests := []struct {
		name   string
		na, nb int
	}{
		{"equal lengths", 300, 300},
		{"a longer", 517, 129},
		{"b longer", 64, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := make([]float64, tt.na)
			b := make([]float64, tt.nb)
			for i := range a {
				a[i] = rng.NormFloat64() * 100
			}
			for i := range b {
				b[i] = rng.NormFloat64() * 100
			}

			direct := correlateDirect(a, b)
			fft := correlateFFT(a, b)
			require.Len(t, fft, tt.na+tt.nb-1)
			for i := range direct {
				assert.InDelta(t, direct[i], fft[i], 1e-6*(1+math.Abs(direct[i])), "index %d", i)
			}
		})
	}
}

func TestEstimateLag(t *testing.T) {
	base := make([]float64, 200)
	for i := range base {
		base[i] = math.Sin(float64(i)/7) + 0.5*math.Sin(float64(i)/3.1) + float64(i%17)/10
	}

	t.Run("identical sequences", func(t *testing.T) {
		res, err := EstimateLag(base, base)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Lag)
		assert.Equal(t, len(base)-1, res.Index)
	})

	for _, k := range []int{1, 5, 23} {
		impulse := make([]float64, 100)
		impulse[10] = 1
		shifted := make([]float64, 100)
		shifted[10+k] = 1

		res, err := EstimateLag(shifted, impulse)
		require.NoError(t, err)
		assert.Equal(t, k, res.Lag, "impulse delayed by %d", k)
		assert.InDelta(t, 1.0, res.Peak, 1e-12)

		res, err = EstimateLag(impulse, shifted)
		require.NoError(t, err)
		assert.Equal(t, -k, res.Lag, "impulse advanced by %d", k)
	}

	t.Run("long sequences use the same convention", func(t *testing.T) {
		n := 1200
		rng := rand.New(rand.NewSource(9))
		b := make([]float64, n)
		for i := range b {
			b[i] = rng.NormFloat64()
		}
		a := make([]float64, n)
		copy(a[37:], b[:n-37])

		res, err := EstimateLag(a, b)
		require.NoError(t, err)
		assert.Equal(t, 37, res.Lag)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := EstimateLag(nil, base)
		assert.True(t, errors.Is(err, ErrEmptySequence))
	})
}

func TestRemoveMean(t *testing.T) {
	in := []float64{1, 2, 3, 6}
	out := RemoveMean(in)
	assert.InDeltaSlice(t, []float64{-2, -1, 0, 3}, out, 1e-12)
	assert.Equal(t, []float64{1, 2, 3, 6}, in)
	assert.Empty(t, RemoveMean(nil))
}
