package magcal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Input:       DefaultInputConfig(),
		Calibration: DefaultCalibrationConfig(),
		Heading:     HeadingConfig{Offset: DefaultHeadingOffset},
		Unwrap:      UnwrapConfig{Threshold: DefaultUnwrapThreshold},
		Alignment:   DefaultAlignmentConfig(),
		Output: OutputConfig{
			Dir:    "out",
			Format: "svg",
			Width:  800,
			Height: 400,
		},
		MQTT: MQTTConfig{
			ClientID:      "magcal",
			PublishPrefix: DefaultPublishPrefix,
		},
	}
}

// LoadConfig loads a YAML configuration file on top of DefaultConfig.
// Keys absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks value ranges, naming the offending key
func (c *Config) Validate() error {
	if c.Input.XColumn == "" {
		return fmt.Errorf("input.xColumn is required")
	}
	if c.Input.YColumn == "" {
		return fmt.Errorf("input.yColumn is required")
	}
	if c.Calibration.Iterations < 1 {
		return fmt.Errorf("calibration.iterations must be >= 1, got %d", c.Calibration.Iterations)
	}
	if c.Calibration.OutlierNorm <= 0 {
		return fmt.Errorf("calibration.outlierNorm must be > 0")
	}
	if c.Calibration.RCond < 0 {
		return fmt.Errorf("calibration.rcond must be >= 0")
	}
	if c.Unwrap.Threshold < 0 {
		return fmt.Errorf("unwrap.threshold must be >= 0")
	}
	if c.Alignment.Trim < 0 {
		return fmt.Errorf("alignment.trim must be >= 0")
	}
	if c.Alignment.Window < 0 {
		return fmt.Errorf("alignment.window must be >= 0")
	}
	switch c.Output.Format {
	case "svg", "png", "both":
	default:
		return fmt.Errorf("output.format must be svg, png or both, got %q", c.Output.Format)
	}
	if c.Output.Width <= 0 || c.Output.Height <= 0 {
		return fmt.Errorf("output.width and output.height must be > 0")
	}
	return nil
}

// ApplyEnv overrides the mqtt section from MQTT_BROKER, MQTT_CLIENT_ID,
// MQTT_USERNAME and MQTT_PASSWORD when they are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_CLIENT_ID"); v != "" {
		c.MQTT.ClientID = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
}
