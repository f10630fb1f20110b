package route

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Elevation service defaults.
const (
	DefaultElevationURL        = "https://api.open-elevation.com/api/v1/lookup"
	DefaultElevationBatchSize  = 512
	DefaultElevationBatchDelay = 100 * time.Millisecond
	DefaultElevationSamples    = 50
	DefaultHTTPPort            = 8080
)

// DefaultConfig returns a configuration that works without a config file.
func DefaultConfig() *Config {
	return &Config{
		Engine: DefaultEngineConfig(),
		Paths: PathsConfig{
			References: "GPX/Reference",
			Candidates: "GPX/GPX_Temp",
			Output:     "GPX/Enhanced",
			Archive:    "GPX/Archive_Routes",
			Reports:    ".reports.json",
		},
		Elevation: ElevationConfig{
			URL:          DefaultElevationURL,
			BatchSize:    DefaultElevationBatchSize,
			BatchDelay:   DefaultElevationBatchDelay,
			Timeout:      DefaultFetchTimeout,
			SamplePoints: DefaultElevationSamples,
		},
		HTTP: HTTPConfig{Port: DefaultHTTPPort},
	}
}

// LoadConfig loads the configuration from a YAML file. Missing values take
// their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	config.applyDefaults()

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

func (c *Config) applyDefaults() {
	c.Engine = c.Engine.normalized()
	d := DefaultConfig()
	if c.Elevation.URL == "" {
		c.Elevation.URL = d.Elevation.URL
	}
	if c.Elevation.BatchSize <= 0 {
		c.Elevation.BatchSize = d.Elevation.BatchSize
	}
	if c.Elevation.BatchDelay < 0 {
		c.Elevation.BatchDelay = d.Elevation.BatchDelay
	}
	if c.Elevation.Timeout <= 0 {
		c.Elevation.Timeout = d.Elevation.Timeout
	}
	if c.Elevation.SamplePoints <= 0 {
		c.Elevation.SamplePoints = d.Elevation.SamplePoints
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = d.HTTP.Port
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	if c.Engine.DistanceTolerancePct >= 100 {
		return fmt.Errorf("engine.distanceTolerancePct must be below 100")
	}
	if c.Engine.GuardrailPointRatio >= 1 {
		return fmt.Errorf("engine.guardrailPointRatio must be below 1")
	}
	if c.Elevation.Enabled {
		u, err := url.Parse(c.Elevation.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("elevation.url is not a valid URL: %q", c.Elevation.URL)
		}
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2: %d", c.MQTT.QoS)
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}

	for i, e := range c.Catalogue.Events {
		if e.ID == "" {
			return fmt.Errorf("catalogue.events[%d].id is required", i)
		}
		if _, ok := ParseDistanceLabel(e.Distance); !ok {
			return fmt.Errorf("catalogue.events[%d].distance %q is not a known distance for %s", i, e.Distance, e.ID)
		}
	}
	return nil
}

// BuildCatalogue loads the spreadsheet (if any) and then applies the inline
// events on top.
func BuildCatalogue(c CatalogueConfig) (*Catalogue, error) {
	cat := NewCatalogue()
	if c.Spreadsheet != "" {
		events, err := LoadEventsXLSX(c.Spreadsheet, c.Sheet)
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			cat.Add(e)
		}
	}
	for _, e := range c.Events {
		cat.Add(e)
	}
	return cat, nil
}
