package magcal

import "time"

// Sample is a single raw two-axis magnetometer reading.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Transform is the affine correction y = A·x + B.
//
//	A = [A11 A12]    B = [B1]
//	    [A21 A22]        [B2]
type Transform struct {
	A11 float64 `json:"a11"`
	A12 float64 `json:"a12"`
	A21 float64 `json:"a21"`
	A22 float64 `json:"a22"`
	B1  float64 `json:"b1"`
	B2  float64 `json:"b2"`
}

// Identity returns a transform that leaves samples unchanged
func Identity() Transform {
	return Transform{A11: 1, A22: 1}
}

// Recording is a batch of samples loaded from disk, with an optional
// reference heading (degrees) recorded alongside them.
type Recording struct {
	Samples   []Sample  `json:"samples"`
	Reference []float64 `json:"reference,omitempty"`
}

// HasReference reports whether the recording carries a reference heading
func (r *Recording) HasReference() bool {
	return r != nil && len(r.Reference) > 0
}

// NormStats summarises the Euclidean norms of a sample set.
type NormStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// IterationStats records diagnostics for one refinement pass.
type IterationStats struct {
	Iteration int     `json:"iteration"`
	Rank      int     `json:"rank"`
	Rows      int     `json:"rows"`     // rows used in the least-squares fit
	Excluded  int     `json:"excluded"` // rows left out (zero norm or outlier)
	MeanNorm  float64 `json:"meanNorm"` // mean norm of the working set before the fit
}

// CalibrationResult is the output of Calibrate.
type CalibrationResult struct {
	Transform  Transform        `json:"transform"`
	Rank       int              `json:"rank"` // lowest rank seen across iterations
	Iterations []IterationStats `json:"iterations"`
	Before     NormStats        `json:"before"`
	After      NormStats        `json:"after"`
	Elapsed    time.Duration    `json:"elapsed"`
}

// LagResult is the peak of a cross-correlation.
type LagResult struct {
	Lag   int     `json:"lag"`   // positive when the first sequence trails the second
	Peak  float64 `json:"peak"`  // correlation value at the peak
	Index int     `json:"index"` // peak index into the full correlation
}

// HeadingComparison holds error statistics between a magnetic heading
// sequence and a reference heading sequence, in degrees.
type HeadingComparison struct {
	Samples      int     `json:"samples"`
	MeanError    float64 `json:"meanError"`
	MeanAbsError float64 `json:"meanAbsError"`
	RMSError     float64 `json:"rmsError"`
	MaxAbsError  float64 `json:"maxAbsError"`
}

// InputConfig describes where samples come from
type InputConfig struct {
	CSV                 string  `yaml:"csv" json:"csv"`
	XColumn             string  `yaml:"xColumn" json:"xColumn"`
	YColumn             string  `yaml:"yColumn" json:"yColumn"`
	ReferenceColumn     string  `yaml:"referenceColumn,omitempty" json:"referenceColumn,omitempty"`
	ReferenceScale      float64 `yaml:"referenceScale" json:"referenceScale"`
	NMEA                string  `yaml:"nmea,omitempty" json:"nmea,omitempty"`
	NMEADeriveFromTrack bool    `yaml:"nmeaDeriveFromTrack,omitempty" json:"nmeaDeriveFromTrack,omitempty"`
}

// CalibrationConfig controls the iterative fit.
type CalibrationConfig struct {
	Iterations     int     `yaml:"iterations" json:"iterations"`
	RejectOutliers bool    `yaml:"rejectOutliers" json:"rejectOutliers"`
	OutlierNorm    float64 `yaml:"outlierNorm" json:"outlierNorm"`
	RCond          float64 `yaml:"rcond,omitempty" json:"rcond,omitempty"` // 0 = machine epsilon * max(rows, 3)
}

// HeadingConfig holds the mounting/declination offset in degrees
type HeadingConfig struct {
	Offset float64 `yaml:"offset" json:"offset"`
}

// UnwrapConfig holds the discontinuity threshold in degrees
type UnwrapConfig struct {
	Threshold float64 `yaml:"threshold" json:"threshold"`
}

// AlignmentConfig selects the comparison window between the two heading streams.
type AlignmentConfig struct {
	Trim           int  `yaml:"trim" json:"trim"`
	Window         int  `yaml:"window" json:"window"` // 0 = to the end
	ReferenceShift int  `yaml:"referenceShift" json:"referenceShift"`
	AutoShift      bool `yaml:"autoShift" json:"autoShift"`
	RemoveMean     bool `yaml:"removeMean" json:"removeMean"`
}

// OutputConfig controls rendered artefacts
type OutputConfig struct {
	Dir    string  `yaml:"dir" json:"dir"`
	Format string  `yaml:"format" json:"format"` // svg, png or both
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config represents the full configuration file
type Config struct {
	Input       InputConfig       `yaml:"input" json:"input"`
	Calibration CalibrationConfig `yaml:"calibration" json:"calibration"`
	Heading     HeadingConfig     `yaml:"heading" json:"heading"`
	Unwrap      UnwrapConfig      `yaml:"unwrap" json:"unwrap"`
	Alignment   AlignmentConfig   `yaml:"alignment" json:"alignment"`
	Output      OutputConfig      `yaml:"output" json:"output"`
	MQTT        MQTTConfig        `yaml:"mqtt" json:"mqtt"`
}
