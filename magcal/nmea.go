package magcal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	log "github.com/sirupsen/logrus"
)

// Fix is one RMC position report
type Fix struct {
	Time       time.Time `json:"time"`
	Latitude   float64   `json:"latitude"`  // decimal degrees
	Longitude  float64   `json:"longitude"` // decimal degrees
	SpeedKnots float64   `json:"speedKnots"`
	CourseDeg  float64   `json:"courseDeg"`
	Valid      bool      `json:"valid"`
}

// LoadNMEA reads RMC fixes from an NMEA log file
func LoadNMEA(path string) ([]Fix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening NMEA log: %w", err)
	}
	defer f.Close()

	fixes, err := ReadNMEA(f)
	if err != nil {
		return nil, fmt.Errorf("reading NMEA log %s: %w", path, err)
	}
	return fixes, nil
}

// ReadNMEA parses RMC sentences from r. Other sentence types are ignored and
// lines that fail to parse are skipped.
func ReadNMEA(r io.Reader) ([]Fix, error) {
	var fixes []Fix
	skipped := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			skipped++
			continue
		}
		if sentence.DataType() != nmea.TypeRMC {
			continue
		}

		m := sentence.(nmea.RMC)
		fixes = append(fixes, Fix{
			Time:       fixTime(m.Date, m.Time),
			Latitude:   m.Latitude,
			Longitude:  m.Longitude,
			SpeedKnots: m.Speed,
			CourseDeg:  m.Course,
			Valid:      m.Validity == nmea.ValidRMC,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if skipped > 0 {
		log.WithField("skipped", skipped).Warn("skipped unparseable NMEA sentences")
	}
	log.WithField("fixes", len(fixes)).Debug("parsed NMEA log")
	return fixes, nil
}

func fixTime(d nmea.Date, t nmea.Time) time.Time {
	if !d.Valid || !t.Valid {
		return time.Time{}
	}
	year := 2000 + d.YY
	if d.YY >= 80 {
		year = 1900 + d.YY
	}
	return time.Date(year, time.Month(d.MM), d.DD,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}

// CourseOverGround returns one reference heading per fix in [0, 360). With
// deriveFromTrack the heading is the bearing from the previous fix instead
// of the reported RMC course; the first fix takes the bearing towards the
// second and a stationary fix keeps the previous bearing.
func CourseOverGround(fixes []Fix, deriveFromTrack bool) []float64 {
	out := make([]float64, len(fixes))
	if !deriveFromTrack {
		for i, f := range fixes {
			out[i] = NormalizeAngle(f.CourseDeg)
		}
		return out
	}

	prev := 0.0
	for i := 1; i < len(fixes); i++ {
		from := orb.Point{fixes[i-1].Longitude, fixes[i-1].Latitude}
		to := orb.Point{fixes[i].Longitude, fixes[i].Latitude}
		if !from.Equal(to) {
			prev = NormalizeAngle(geo.Bearing(from, to))
		}
		out[i] = prev
	}
	if len(out) > 1 {
		out[0] = out[1]
	}
	return out
}
