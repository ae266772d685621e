package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions carries parsed command-line flags to the App
type AppOptions struct {
	ConfigFile string
	Input      string
	NMEA       string
	Iterations int
	Offset     float64
	Trim       int
	Window     int
	RefShift   int
	AutoShift  bool
	OutputDir  string
	Format     string

	Calibrate bool
	Render    bool
	Publish   bool
	HTTPMode  bool
	HTTPPort  int

	// Set records which flags were given explicitly; only those override
	// the configuration file.
	Set map[string]bool
}

// Runner is the application surface driven by run
type Runner interface {
	ApplyOptions(opts AppOptions) error
	RunCalibrate() error
	RunRender() error
	RunPublish() error
	RunHTTP() error
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.WithError(err).Error("magcal failed")
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("magcal", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "", "Path to YAML configuration file (defaults when empty)")
	fs.StringVar(&opts.Input, "input", "", "CSV recording with magnetometer samples")
	fs.StringVar(&opts.NMEA, "nmea", "", "NMEA log supplying the reference heading (overrides the CSV reference column)")
	fs.IntVar(&opts.Iterations, "iterations", 10, "Calibration refinement passes")
	fs.Float64Var(&opts.Offset, "offset", 12.98, "Heading mounting/declination offset in degrees")
	fs.IntVar(&opts.Trim, "trim", 175, "Samples skipped before the comparison window")
	fs.IntVar(&opts.Window, "window", 2750, "Comparison window length in samples (0 = to the end)")
	fs.IntVar(&opts.RefShift, "ref-shift", 0, "Extra samples skipped on the reference heading")
	fs.BoolVar(&opts.AutoShift, "auto-shift", false, "Use the estimated correlation lag as the reference shift")
	fs.StringVar(&opts.OutputDir, "output-dir", "out", "Directory for --render output")
	fs.StringVar(&opts.Format, "format", "svg", "Chart format: svg, png or both")

	fs.BoolVar(&opts.Calibrate, "calibrate", false, "Calibrate and print the transform and report")
	fs.BoolVar(&opts.Render, "render", false, "Write charts and report.json to the output directory")
	fs.BoolVar(&opts.Publish, "publish", false, "Publish the report over MQTT")
	fs.BoolVar(&opts.HTTPMode, "http", false, "Serve the report and charts over HTTP")
	fs.IntVar(&opts.HTTPPort, "http-port", 8080, "HTTP server port")

	logLevel := fs.String("log-level", "info", "Log level: debug, info, warn or error")
	logJSON := fs.Bool("log-json", false, "Log as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}
	fmt.Fprintf(out, "magcal version: %s\n", Version)

	if err := configureLogging(*logLevel, *logJSON); err != nil {
		return err
	}

	opts.Set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.Set[f.Name] = true })

	if err := app.ApplyOptions(opts); err != nil {
		return err
	}

	switch {
	case opts.Calibrate:
		return app.RunCalibrate()
	case opts.Render:
		return app.RunRender()
	case opts.Publish:
		return app.RunPublish()
	case opts.HTTPMode:
		return app.RunHTTP()
	}

	fmt.Fprintln(out, "No mode selected. Use one of:")
	fmt.Fprintln(out, "  --calibrate   print the calibration transform and report")
	fmt.Fprintln(out, "  --render      write charts and report.json")
	fmt.Fprintln(out, "  --publish     publish the report over MQTT")
	fmt.Fprintln(out, "  --http        serve the report and charts")
	return nil
}

func configureLogging(level string, asJSON bool) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parsing --log-level: %w", err)
	}
	log.SetLevel(lvl)
	if asJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
