package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kwv/magcal/magcal"
	log "github.com/sirupsen/logrus"
)

// newHTTPServer creates an HTTP server exposing the current analysis
func newHTTPServer(current func() *magcal.Analysis, out magcal.OutputConfig) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.WithField("remote", r.RemoteAddr).Debug("/health request")
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status      string    `json:"status"`
			Timestamp   time.Time `json:"timestamp"`
			HasAnalysis bool      `json:"hasAnalysis"`
		}{
			Status:      "ok",
			Timestamp:   time.Now(),
			HasAnalysis: current() != nil,
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.WithError(err).Warn("encoding health status")
		}
	})

	mux.HandleFunc("/report.json", func(w http.ResponseWriter, r *http.Request) {
		result := current()
		if result == nil {
			http.Error(w, "No calibration available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.Report()); err != nil {
			log.WithError(err).Warn("encoding report")
		}
	})

	for _, name := range []string{"scatter", "heading", "correlation"} {
		mux.HandleFunc("/"+name+".svg", chartHandler(current, out, name, "svg"))
		mux.HandleFunc("/"+name+".png", chartHandler(current, out, name, "png"))
	}

	return mux
}

// chartHandler renders one chart of the current analysis on each request
func chartHandler(current func() *magcal.Analysis, out magcal.OutputConfig, name, ext string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := current()
		if result == nil {
			http.Error(w, "No calibration available", http.StatusServiceUnavailable)
			return
		}

		chart, ok := buildCharts(result, out)[name]
		if !ok {
			http.Error(w, "Chart not available for this recording", http.StatusNotFound)
			return
		}

		// Buffered so a render failure can still set the status code.
		var buf bytes.Buffer
		var err error
		contentType := "image/svg+xml"
		if ext == "png" {
			contentType = "image/png"
			err = chart.RenderToPNG(&buf)
		} else {
			err = chart.RenderToSVG(&buf)
		}
		if err != nil {
			log.WithError(err).WithField("chart", name).Error("rendering chart")
			http.Error(w, "Failed to render chart", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(buf.Bytes()); err != nil {
			log.WithError(err).Warn("writing chart response")
		}
	}
}
