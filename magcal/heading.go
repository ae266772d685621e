package magcal

import "math"

// DefaultHeadingOffset is the sensor mounting and declination correction in degrees.
const DefaultHeadingOffset = 12.98

// Heading converts a calibrated vector to a compass heading in degrees:
// atan2(y, x) + offset + 180. The result is not wrapped into [0, 360).
func Heading(s Sample, offset float64) float64 {
	return math.Atan2(s.Y, s.X)*180/math.Pi + offset + 180
}

// Headings converts every sample with Heading
func Headings(samples []Sample, offset float64) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = Heading(s, offset)
	}
	return out
}

// NormalizeAngle wraps an angle in degrees into [0, 360)
func NormalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// AngleDiff returns a - b wrapped into [-180, 180)
func AngleDiff(a, b float64) float64 {
	return NormalizeAngle(a-b+180) - 180
}
