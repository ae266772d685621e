package magcal

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// fftThreshold is the len(a)*len(b) product above which CrossCorrelate
// switches from the direct sum to FFT convolution.
const fftThreshold = 1 << 16

// CrossCorrelate returns the full cross-correlation of a and b, of length
// len(a)+len(b)-1:
//
//	z[k] = Σ_l a[l]·b[l-k+len(b)-1]
//
// Index k corresponds to lag k-(len(b)-1). Either input being empty yields nil.
func CrossCorrelate(a, b []float64) []float64 {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	if len(a)*len(b) > fftThreshold {
		return correlateFFT(a, b)
	}
	return correlateDirect(a, b)
}

func correlateDirect(a, b []float64) []float64 {
	nb := len(b)
	out := make([]float64, len(a)+nb-1)
	for k := range out {
		shift := k - (nb - 1)
		lo := max(0, shift)
		hi := min(len(a), shift+nb)
		var sum float64
		for l := lo; l < hi; l++ {
			sum += a[l] * b[l-shift]
		}
		out[k] = sum
	}
	return out
}

// correlateFFT convolves a with reversed b through a zero-padded real FFT.
func correlateFFT(a, b []float64) []float64 {
	size := len(a) + len(b) - 1
	n := 1
	for n < size {
		n <<= 1
	}

	pa := make([]float64, n)
	copy(pa, a)
	pb := make([]float64, n)
	for i, v := range b {
		pb[len(b)-1-i] = v
	}

	fft := fourier.NewFFT(n)
	ca := fft.Coefficients(nil, pa)
	cb := fft.Coefficients(nil, pb)
	for i := range ca {
		ca[i] *= cb[i]
	}
	seq := fft.Sequence(nil, ca)

	// Sequence is unnormalized.
	floats.Scale(1/float64(n), seq)
	return seq[:size]
}

// EstimateLag finds the lag maximising the cross-correlation of a and b.
// A positive lag means a trails b, that is a[n] ≈ b[n-Lag].
func EstimateLag(a, b []float64) (LagResult, error) {
	if len(a) == 0 || len(b) == 0 {
		return LagResult{}, fmt.Errorf("estimating lag of %d and %d samples: %w", len(a), len(b), ErrEmptySequence)
	}

	res := peakLag(CrossCorrelate(a, b), len(b))
	log.WithFields(log.Fields{"lag": res.Lag, "peak": res.Peak}).Debug("estimated correlation lag")
	return res, nil
}

// peakLag locates the maximum of a full correlation against a sequence of
// length nb. Ties resolve to the lowest index.
func peakLag(corr []float64, nb int) LagResult {
	idx := floats.MaxIdx(corr)
	return LagResult{
		Lag:   idx - (nb - 1),
		Peak:  corr[idx],
		Index: idx,
	}
}

// RemoveMean returns a copy of xs with its mean subtracted
func RemoveMean(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	copy(out, xs)
	floats.AddConst(-stat.Mean(xs, nil), out)
	return out
}
