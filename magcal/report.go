package magcal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// Report is the diagnostic summary of an Analysis. It is written out for
// inspection and publication only; nothing reads it back.
type Report struct {
	Generated      time.Time          `json:"generated"`
	Samples        int                `json:"samples"`
	Transform      Transform          `json:"transform"`
	Rank           int                `json:"rank"`
	Iterations     int                `json:"iterations"`
	Passes         []IterationStats   `json:"passes,omitempty"`
	ElapsedMs      float64            `json:"elapsedMs"`
	Before         NormStats          `json:"before"`
	After          NormStats          `json:"after"`
	ReferenceShift int                `json:"referenceShift"`
	Lag            *LagResult         `json:"lag,omitempty"`
	Comparison     *HeadingComparison `json:"comparison,omitempty"`
}

// Report summarises the analysis
func (a *Analysis) Report() *Report {
	r := &Report{
		Generated:      time.Now().UTC(),
		Samples:        len(a.Raw),
		ReferenceShift: a.ReferenceShift,
		Lag:            a.Lag,
		Comparison:     a.Comparison,
	}
	if cal := a.Calibration; cal != nil {
		r.Transform = cal.Transform
		r.Rank = cal.Rank
		r.Iterations = len(cal.Iterations)
		r.Passes = cal.Iterations
		r.ElapsedMs = float64(cal.Elapsed) / float64(time.Millisecond)
		r.Before = cal.Before
		r.After = cal.After
	}
	return r
}

// WriteReport writes the report as indented JSON, creating parent
// directories as needed.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	log.WithField("path", path).Info("wrote report")
	return nil
}
