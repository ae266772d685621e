package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/kwv/magcal/magcal"
	log "github.com/sirupsen/logrus"
)

// App encapsulates the application state and dependencies
type App struct {
	Config   *magcal.Config
	HTTPPort int
	Out      io.Writer

	// Connect opens the MQTT connection for RunPublish
	Connect func(magcal.MQTTConfig) (mqtt.Client, error)

	mu       sync.RWMutex
	analysis *magcal.Analysis
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Config:   magcal.DefaultConfig(),
		HTTPPort: 8080,
		Out:      os.Stdout,
		Connect:  magcal.ConnectMQTT,
	}
}

// ApplyOptions loads the configuration file, if any, then layers the
// environment and explicitly set flags over it.
func (a *App) ApplyOptions(opts AppOptions) error {
	cfg := magcal.DefaultConfig()
	if opts.ConfigFile != "" {
		loaded, err := magcal.LoadConfig(opts.ConfigFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	set := func(name string) bool { return opts.Set[name] }
	if set("input") {
		cfg.Input.CSV = opts.Input
	}
	if set("nmea") {
		cfg.Input.NMEA = opts.NMEA
	}
	if set("iterations") {
		cfg.Calibration.Iterations = opts.Iterations
	}
	if set("offset") {
		cfg.Heading.Offset = opts.Offset
	}
	if set("trim") {
		cfg.Alignment.Trim = opts.Trim
	}
	if set("window") {
		cfg.Alignment.Window = opts.Window
	}
	if set("ref-shift") {
		cfg.Alignment.ReferenceShift = opts.RefShift
	}
	if set("auto-shift") {
		cfg.Alignment.AutoShift = opts.AutoShift
	}
	if set("output-dir") {
		cfg.Output.Dir = opts.OutputDir
	}
	if set("format") {
		cfg.Output.Format = opts.Format
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	a.Config = cfg
	if opts.HTTPPort != 0 {
		a.HTTPPort = opts.HTTPPort
	}
	return nil
}

// loadRecording reads the configured CSV and, when an NMEA log is given,
// replaces the reference heading with its course over ground.
func (a *App) loadRecording() (*magcal.Recording, error) {
	in := a.Config.Input
	if in.CSV == "" {
		return nil, errors.New("no input recording: set --input or input.csv")
	}

	rec, err := magcal.LoadCSV(in.CSV, in)
	if err != nil {
		return nil, err
	}

	if in.NMEA != "" {
		fixes, err := magcal.LoadNMEA(in.NMEA)
		if err != nil {
			return nil, err
		}
		rec.Reference = magcal.CourseOverGround(fixes, in.NMEADeriveFromTrack)
		log.WithFields(log.Fields{
			"path":  in.NMEA,
			"fixes": len(fixes),
		}).Info("loaded reference heading from NMEA")
	}
	return rec, nil
}

// analyze runs the full pipeline and keeps the result for the HTTP handlers
func (a *App) analyze() (*magcal.Analysis, error) {
	rec, err := a.loadRecording()
	if err != nil {
		return nil, err
	}
	result, err := magcal.Analyze(rec, a.Config)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.analysis = result
	a.mu.Unlock()
	return result, nil
}

// CurrentAnalysis returns the most recent analysis, or nil before the first run
func (a *App) CurrentAnalysis() *magcal.Analysis {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.analysis
}

// RunCalibrate calibrates the recording and prints the result
func (a *App) RunCalibrate() error {
	result, err := a.analyze()
	if err != nil {
		return err
	}
	printSummary(a.Out, result.Report())
	return nil
}

// RunRender writes every chart and the report into the output directory
func (a *App) RunRender() error {
	result, err := a.analyze()
	if err != nil {
		return err
	}

	dir := a.Config.Output.Dir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	var exts []string
	switch a.Config.Output.Format {
	case "png":
		exts = []string{"png"}
	case "both":
		exts = []string{"svg", "png"}
	default:
		exts = []string{"svg"}
	}

	for name, chart := range buildCharts(result, a.Config.Output) {
		for _, ext := range exts {
			path := filepath.Join(dir, name+"."+ext)
			if err := writeChart(path, chart, ext); err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "Wrote %s\n", path)
		}
	}

	reportPath := filepath.Join(dir, "report.json")
	if err := magcal.WriteReport(reportPath, result.Report()); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Wrote %s\n", reportPath)
	return nil
}

// RunPublish calibrates and publishes the report over MQTT
func (a *App) RunPublish() error {
	if a.Config.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required for --publish (config or MQTT_BROKER)")
	}

	result, err := a.analyze()
	if err != nil {
		return err
	}

	client, err := a.Connect(a.Config.MQTT)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	publisher := magcal.NewPublisher(client, a.Config.MQTT.PublishPrefix)
	if err := publisher.PublishReport(result.Report()); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Published report to %s/report\n", a.Config.MQTT.PublishPrefix)
	return nil
}

// RunHTTP calibrates once and serves the result until interrupted
func (a *App) RunHTTP() error {
	if _, err := a.analyze(); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", a.HTTPPort),
		Handler:           newHTTPServer(a.CurrentAnalysis, a.Config.Output),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("starting HTTP server")
		errCh <- server.ListenAndServe()
	}()

	fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.HTTPPort)
	fmt.Fprintln(a.Out, "  GET /health            - Health check")
	fmt.Fprintln(a.Out, "  GET /report.json       - Calibration report")
	fmt.Fprintln(a.Out, "  GET /scatter.svg|png   - Raw vs calibrated samples")
	fmt.Fprintln(a.Out, "  GET /heading.svg|png   - Magnetic vs reference heading")
	fmt.Fprintln(a.Out, "  GET /correlation.svg|png - Heading cross-correlation")
	fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	case <-sigChan:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fmt.Fprintln(a.Out, "\nShutting down...")
	return server.Shutdown(ctx)
}

// buildCharts returns the charts available for an analysis, keyed by name
func buildCharts(result *magcal.Analysis, out magcal.OutputConfig) map[string]*magcal.Chart {
	charts := make(map[string]*magcal.Chart, 3)

	scatter := magcal.ScatterChart(result.Raw, result.Calibrated)
	scatter.Width, scatter.Height = out.Height, out.Height
	charts["scatter"] = scatter

	var heading *magcal.Chart
	if result.Comparison != nil {
		heading = magcal.HeadingChart(result.HeadingWindow, result.ReferenceWindow)
	} else {
		heading = magcal.HeadingChart(magcal.Unwrap(result.Headings, 0), nil)
	}
	heading.Width, heading.Height = out.Width, out.Height
	charts["heading"] = heading

	if len(result.Correlation) > 0 {
		corr := magcal.CorrelationChart(result.Correlation, len(result.Reference)-1)
		corr.Width, corr.Height = out.Width, out.Height
		charts["correlation"] = corr
	}
	return charts
}

func writeChart(path string, chart *magcal.Chart, ext string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if ext == "png" {
		err = chart.RenderToPNG(f)
	} else {
		err = chart.RenderToSVG(f)
	}
	if err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return f.Close()
}

func printSummary(w io.Writer, r *magcal.Report) {
	t := r.Transform
	fmt.Fprintln(w, "\nCalibration")
	fmt.Fprintln(w, "===========")
	fmt.Fprintf(w, "A = [% .6f % .6f]\n", t.A11, t.A12)
	fmt.Fprintf(w, "    [% .6f % .6f]\n", t.A21, t.A22)
	fmt.Fprintf(w, "B = [% .6f % .6f]\n", t.B1, t.B2)
	fmt.Fprintf(w, "Samples: %d  Iterations: %d  Rank: %d  Elapsed: %.2fms\n",
		r.Samples, r.Iterations, r.Rank, r.ElapsedMs)
	fmt.Fprintf(w, "Mean norm: raw %.4f (sd %.4f) -> calibrated %.4f (sd %.4f)\n",
		r.Before.Mean, r.Before.StdDev, r.After.Mean, r.After.StdDev)

	if r.Lag != nil {
		fmt.Fprintf(w, "Estimated lag: %d samples (reference shift used: %d)\n", r.Lag.Lag, r.ReferenceShift)
	}
	if c := r.Comparison; c != nil {
		fmt.Fprintf(w, "Heading error over %d samples: mean %.2f°, mean abs %.2f°, rms %.2f°, max %.2f°\n",
			c.Samples, c.MeanError, c.MeanAbsError, c.RMSError, c.MaxAbsError)
	}
}
