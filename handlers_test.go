package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kwv/magcal/magcal"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// analyzedApp returns an App that has already analyzed the fixture recording.
func analyzedApp(t *testing.T, withReference bool) *App {
	t.Helper()
	app, _ := newTestApp(t, fixtureOptions(writeRecording(t, withReference)))
	if _, err := app.analyze(); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return app
}

func noAnalysis() *magcal.Analysis { return nil }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// /health
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		current     func() *magcal.Analysis
		hasAnalysis bool
	}{
		{name: "before analysis", current: noAnalysis, hasAnalysis: false},
		{name: "after analysis", current: analyzedApp(t, false).CurrentAnalysis, hasAnalysis: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newHTTPServer(tt.current, magcal.DefaultConfig().Output), "/health")

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body struct {
				Status      string `json:"status"`
				HasAnalysis bool   `json:"hasAnalysis"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != "ok" {
				t.Errorf("status = %q, want ok", body.Status)
			}
			if body.HasAnalysis != tt.hasAnalysis {
				t.Errorf("hasAnalysis = %v, want %v", body.HasAnalysis, tt.hasAnalysis)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// /report.json
// ---------------------------------------------------------------------------

func TestReportEndpoint_NoAnalysis(t *testing.T) {
	rec := get(t, newHTTPServer(noAnalysis, magcal.DefaultConfig().Output), "/report.json")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestReportEndpoint(t *testing.T) {
	app := analyzedApp(t, true)
	rec := get(t, newHTTPServer(app.CurrentAnalysis, app.Config.Output), "/report.json")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}

	var report magcal.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Samples != fixtureTurns*fixturePerTurn {
		t.Errorf("samples = %d, want %d", report.Samples, fixtureTurns*fixturePerTurn)
	}
	if report.Lag == nil || report.Comparison == nil {
		t.Fatalf("report missing lag or comparison: %+v", report)
	}
	if report.Lag.Lag != -fixtureLag {
		t.Errorf("lag = %d, want %d", report.Lag.Lag, -fixtureLag)
	}
}

// ---------------------------------------------------------------------------
// charts
// ---------------------------------------------------------------------------

func TestChartEndpoints(t *testing.T) {
	app := analyzedApp(t, true)
	h := newHTTPServer(app.CurrentAnalysis, app.Config.Output)

	for _, name := range []string{"scatter", "heading", "correlation"} {
		t.Run(name+".svg", func(t *testing.T) {
			rec := get(t, h, "/"+name+".svg")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
				t.Errorf("Content-Type = %q, want image/svg+xml", ct)
			}
			if !strings.Contains(rec.Body.String(), "<svg") {
				t.Error("body is not an SVG document")
			}
		})

		t.Run(name+".png", func(t *testing.T) {
			rec := get(t, h, "/"+name+".png")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
				t.Errorf("Content-Type = %q, want image/png", ct)
			}
			if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
				t.Errorf("decoding PNG: %v", err)
			}
		})
	}
}

func TestChartEndpoints_NoAnalysis(t *testing.T) {
	h := newHTTPServer(noAnalysis, magcal.DefaultConfig().Output)
	for _, path := range []string{"/scatter.svg", "/heading.png"} {
		if rec := get(t, h, path); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, rec.Code)
		}
	}
}

func TestCorrelationChart_NoReference(t *testing.T) {
	app := analyzedApp(t, false)
	h := newHTTPServer(app.CurrentAnalysis, app.Config.Output)

	if rec := get(t, h, "/correlation.svg"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec := get(t, h, "/heading.svg"); rec.Code != http.StatusOK {
		t.Errorf("heading without reference: status = %d, want 200", rec.Code)
	}
}

func TestUnknownPath(t *testing.T) {
	rec := get(t, newHTTPServer(noAnalysis, magcal.DefaultConfig().Output), "/map.png")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
