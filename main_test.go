package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) ApplyOptions(opts AppOptions) error { return m.Called(opts).Error(0) }
func (m *mockRunner) RunCalibrate() error                { return m.Called().Error(0) }
func (m *mockRunner) RunRender() error                   { return m.Called().Error(0) }
func (m *mockRunner) RunPublish() error                  { return m.Called().Error(0) }
func (m *mockRunner) RunHTTP() error                     { return m.Called().Error(0) }

// appliedOptions returns the options passed to ApplyOptions
func (m *mockRunner) appliedOptions(t *testing.T) AppOptions {
	t.Helper()
	for _, c := range m.Calls {
		if c.Method == "ApplyOptions" {
			return c.Arguments.Get(0).(AppOptions)
		}
	}
	t.Fatal("ApplyOptions was not called")
	return AppOptions{}
}

func TestRun_Modes(t *testing.T) {
	defer log.SetLevel(log.InfoLevel)

	tests := []struct {
		name       string
		args       []string
		method     string
		verifyOpts func(*testing.T, AppOptions)
	}{
		{
			name:   "Calibrate",
			args:   []string{"--calibrate", "--input", "tumble.csv", "--iterations", "25"},
			method: "RunCalibrate",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				assert.Equal(t, "tumble.csv", opts.Input)
				assert.Equal(t, 25, opts.Iterations)
				assert.True(t, opts.Set["input"])
				assert.True(t, opts.Set["iterations"])
				assert.False(t, opts.Set["offset"])
			},
		},
		{
			name:   "Render",
			args:   []string{"--render", "--output-dir", "/tmp/plots", "--format", "both", "--trim", "100", "--window", "0"},
			method: "RunRender",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				assert.Equal(t, "/tmp/plots", opts.OutputDir)
				assert.Equal(t, "both", opts.Format)
				assert.Equal(t, 100, opts.Trim)
				assert.Equal(t, 0, opts.Window)
				assert.True(t, opts.Set["window"])
			},
		},
		{
			name:   "Publish",
			args:   []string{"--publish", "--config", "magcal.yaml"},
			method: "RunPublish",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				assert.Equal(t, "magcal.yaml", opts.ConfigFile)
			},
		},
		{
			name:   "HTTP",
			args:   []string{"--http", "--http-port", "9090", "--auto-shift", "--ref-shift", "-3", "--nmea", "track.nmea"},
			method: "RunHTTP",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				assert.Equal(t, 9090, opts.HTTPPort)
				assert.True(t, opts.AutoShift)
				assert.Equal(t, -3, opts.RefShift)
				assert.Equal(t, "track.nmea", opts.NMEA)
			},
		},
		{
			name:   "first mode wins",
			args:   []string{"--render", "--calibrate", "--offset", "0"},
			method: "RunCalibrate",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				assert.Equal(t, 0.0, opts.Offset)
				assert.True(t, opts.Set["offset"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &mockRunner{}
			app.On("ApplyOptions", mock.Anything).Return(nil)
			app.On(tt.method).Return(nil)

			var out bytes.Buffer
			require.NoError(t, run(tt.args, &out, app))

			app.AssertExpectations(t)
			tt.verifyOpts(t, app.appliedOptions(t))
		})
	}
}

func TestRun_Defaults(t *testing.T) {
	app := &mockRunner{}
	app.On("ApplyOptions", mock.Anything).Return(nil)

	var out bytes.Buffer
	require.NoError(t, run([]string{}, &out, app))

	opts := app.appliedOptions(t)
	assert.Equal(t, 10, opts.Iterations)
	assert.Equal(t, 12.98, opts.Offset)
	assert.Equal(t, 175, opts.Trim)
	assert.Equal(t, 2750, opts.Window)
	assert.Equal(t, "out", opts.OutputDir)
	assert.Equal(t, "svg", opts.Format)
	assert.Equal(t, 8080, opts.HTTPPort)
	assert.Empty(t, opts.Set)

	assert.Contains(t, out.String(), "magcal version: "+Version)
	assert.Contains(t, out.String(), "No mode selected")
	app.AssertNotCalled(t, "RunCalibrate")
}

func TestRun_Help(t *testing.T) {
	app := &mockRunner{}
	var out bytes.Buffer
	err := run([]string{"--help"}, &out, app)

	assert.True(t, errors.Is(err, flag.ErrHelp))
	assert.True(t, strings.Contains(out.String(), "Usage of magcal"), "got: %s", out.String())
	app.AssertNotCalled(t, "ApplyOptions", mock.Anything)
}

func TestRun_Errors(t *testing.T) {
	t.Run("unknown flag", func(t *testing.T) {
		var out bytes.Buffer
		assert.Error(t, run([]string{"--bogus"}, &out, &mockRunner{}))
	})

	t.Run("bad log level", func(t *testing.T) {
		var out bytes.Buffer
		err := run([]string{"--log-level", "loud"}, &out, &mockRunner{})
		assert.ErrorContains(t, err, "--log-level")
	})

	t.Run("options rejected", func(t *testing.T) {
		app := &mockRunner{}
		app.On("ApplyOptions", mock.Anything).Return(errors.New("calibration.iterations must be >= 1"))

		var out bytes.Buffer
		err := run([]string{"--calibrate", "--iterations", "0"}, &out, app)
		assert.ErrorContains(t, err, "calibration.iterations")
		app.AssertNotCalled(t, "RunCalibrate")
	})

	t.Run("mode failure propagates", func(t *testing.T) {
		app := &mockRunner{}
		app.On("ApplyOptions", mock.Anything).Return(nil)
		app.On("RunRender").Return(errors.New("disk full"))

		var out bytes.Buffer
		assert.ErrorContains(t, run([]string{"--render"}, &out, app), "disk full")
	})
}

func TestConfigureLogging(t *testing.T) {
	defer func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	}()

	require.NoError(t, configureLogging("debug", true))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	require.NoError(t, configureLogging("warn", false))
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
}
