package magcal

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// DefaultInputConfig returns the column layout of the reference recordings.
func DefaultInputConfig() InputConfig {
	return InputConfig{
		XColumn:         "xmag",
		YColumn:         "ymag",
		ReferenceColumn: "cog",
		ReferenceScale:  0.01,
	}
}

// LoadCSV reads a recording from a CSV file
func LoadCSV(path string, cfg InputConfig) (*Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening recording: %w", err)
	}
	defer f.Close()

	rec, err := ReadCSV(f, cfg)
	if err != nil {
		return nil, fmt.Errorf("reading recording %s: %w", path, err)
	}
	log.WithFields(log.Fields{
		"path":      path,
		"samples":   len(rec.Samples),
		"reference": rec.HasReference(),
	}).Info("loaded recording")
	return rec, nil
}

// ReadCSV parses a recording with a header row. The sample columns are
// required; the reference column is optional and scaled into degrees by
// cfg.ReferenceScale.
func ReadCSV(r io.Reader, cfg InputConfig) (*Recording, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	xCol, ok := index[cfg.XColumn]
	if !ok {
		return nil, fmt.Errorf("column %q not found", cfg.XColumn)
	}
	yCol, ok := index[cfg.YColumn]
	if !ok {
		return nil, fmt.Errorf("column %q not found", cfg.YColumn)
	}
	refCol := -1
	if cfg.ReferenceColumn != "" {
		if i, found := index[cfg.ReferenceColumn]; found {
			refCol = i
		}
	}
	scale := cfg.ReferenceScale
	if scale == 0 {
		scale = 1
	}

	rec := &Recording{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		x, err := parseField(record, xCol, cfg.XColumn, line)
		if err != nil {
			return nil, err
		}
		y, err := parseField(record, yCol, cfg.YColumn, line)
		if err != nil {
			return nil, err
		}
		rec.Samples = append(rec.Samples, Sample{X: x, Y: y})

		if refCol >= 0 {
			v, err := parseField(record, refCol, cfg.ReferenceColumn, line)
			if err != nil {
				return nil, err
			}
			rec.Reference = append(rec.Reference, v*scale)
		}
	}

	return rec, nil
}

func parseField(record []string, col int, name string, line int) (float64, error) {
	if col >= len(record) {
		return 0, fmt.Errorf("line %d: column %q missing", line, name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %q: %w", line, name, err)
	}
	return v, nil
}
