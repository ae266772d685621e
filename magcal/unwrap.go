package magcal

// DefaultUnwrapThreshold is the step, in degrees, treated as a wrap.
const DefaultUnwrapThreshold = 300.0

// Unwrap removes 360° wraparounds from an angle sequence. A forward step
// below -threshold adds 360° to every following sample; a step above
// +threshold subtracts 360°. The first sample is returned unchanged and a
// threshold <= 0 selects DefaultUnwrapThreshold.
func Unwrap(angles []float64, threshold float64) []float64 {
	if threshold <= 0 {
		threshold = DefaultUnwrapThreshold
	}

	out := make([]float64, len(angles))
	if len(angles) == 0 {
		return out
	}

	out[0] = angles[0]
	wrap := 0.0
	for i := 1; i < len(angles); i++ {
		switch diff := angles[i] - angles[i-1]; {
		case diff < -threshold:
			wrap += 360
		case diff > threshold:
			wrap -= 360
		}
		out[i] = angles[i] + wrap
	}
	return out
}
