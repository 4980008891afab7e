// Package config provides configuration loading and management for seismicslicer.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"seismicslicer/internal/models"
	"seismicslicer/pkg/interpolation"
	"seismicslicer/pkg/median"
	"seismicslicer/pkg/spray"
	"seismicslicer/pkg/structfilter"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// Method selects the processing path: "interpolate" or "filter"
		Method string `yaml:"method"`
	} `yaml:"processing"`

	// Dip-constrained interpolation parameters
	Interpolation struct {
		// Order is the accuracy order of the destruction filter (odd)
		Order int `yaml:"order"`

		// Iterations is the conjugate-gradient iteration budget
		Iterations int `yaml:"iterations"`

		// Jump1 and Jump2 decimate the inline and crossline stencils
		Jump1 int `yaml:"jump1"`
		Jump2 int `yaml:"jump2"`

		// Drift is a constant slope offset in samples
		Drift int `yaml:"drift"`

		// AutoDrift removes the rounded local slope at every sample
		AutoDrift bool `yaml:"autoDrift"`

		// Tolerance is the relative gradient norm at which iteration stops
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"interpolation"`

	// Structure-oriented median filter parameters
	Filter struct {
		// Radius1 and Radius2 are the spray radii along inline and crossline
		Radius1 int `yaml:"radius1"`
		Radius2 int `yaml:"radius2"`

		// Order is the number of integration sub-steps per lateral step (odd)
		Order int `yaml:"order"`

		// Eps damps slope changes along the spray trajectories
		Eps float64 `yaml:"eps"`

		// Mode is "fixed" or "adaptive"
		Mode string `yaml:"mode"`

		// Window is the (base) median length; 0 uses the whole ensemble
		Window int `yaml:"window"`
	} `yaml:"filter"`

	// Output parameters
	Output struct {
		// SaveSections exports inline, crossline and time slices as PNG
		SaveSections bool `yaml:"saveSections"`

		// SectionsDir is where the slices are written
		SectionsDir string `yaml:"sectionsDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.Method = "interpolate"

	ip := interpolation.DefaultParams()
	cfg.Interpolation.Order = ip.Order
	cfg.Interpolation.Iterations = ip.Iterations
	cfg.Interpolation.Jump1 = ip.Jump1
	cfg.Interpolation.Jump2 = ip.Jump2
	cfg.Interpolation.Tolerance = ip.Tolerance

	sp := spray.DefaultParams()
	cfg.Filter.Radius1 = sp.Radius1
	cfg.Filter.Radius2 = sp.Radius2
	cfg.Filter.Order = sp.Order
	cfg.Filter.Eps = sp.Eps
	cfg.Filter.Mode = median.Fixed.String()

	cfg.Output.SaveSections = false
	cfg.Output.SectionsDir = "sections"
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks every section before any processing starts
func (c *Config) Validate() error {
	if c.Processing.NumCores < 0 {
		return &models.ConfigError{Field: "processing.numCores", Reason: fmt.Sprintf("must not be negative, got %d", c.Processing.NumCores)}
	}
	switch c.Processing.Method {
	case "interpolate", "filter":
	default:
		return &models.ConfigError{Field: "processing.method", Reason: fmt.Sprintf("unknown method %q", c.Processing.Method)}
	}

	ip := c.InterpolationParams()
	if ip.Order <= 0 || ip.Order%2 == 0 {
		return &models.ConfigError{Field: "interpolation.order", Reason: fmt.Sprintf("must be an odd positive integer, got %d", ip.Order)}
	}
	if ip.Iterations < 1 {
		return &models.ConfigError{Field: "interpolation.iterations", Reason: fmt.Sprintf("must be positive, got %d", ip.Iterations)}
	}
	if ip.Jump1 < 1 || ip.Jump2 < 1 {
		return &models.ConfigError{Field: "interpolation.jump", Reason: fmt.Sprintf("must be positive, got (%d,%d)", ip.Jump1, ip.Jump2)}
	}
	if ip.Tolerance < 0 {
		return &models.ConfigError{Field: "interpolation.tolerance", Reason: fmt.Sprintf("must not be negative, got %g", ip.Tolerance)}
	}

	fp, err := c.FilterParams()
	if err != nil {
		return err
	}
	if err := fp.Spray.Validate(); err != nil {
		return fmt.Errorf("filter section: %w", err)
	}
	if err := fp.Median.Validate(); err != nil {
		return fmt.Errorf("filter section: %w", err)
	}
	return nil
}

// InterpolationParams converts the interpolation section
func (c *Config) InterpolationParams() interpolation.Params {
	p := interpolation.DefaultParams()
	p.Order = c.Interpolation.Order
	p.Iterations = c.Interpolation.Iterations
	p.Jump1 = c.Interpolation.Jump1
	p.Jump2 = c.Interpolation.Jump2
	p.Drift = c.Interpolation.Drift
	p.AutoDrift = c.Interpolation.AutoDrift
	p.Tolerance = c.Interpolation.Tolerance
	p.Verbose = c.Output.Verbose
	p.Workers = c.Processing.NumCores
	return p
}

// FilterParams converts the filter section
func (c *Config) FilterParams() (structfilter.Params, error) {
	mode, err := median.ParseMode(c.Filter.Mode)
	if err != nil {
		return structfilter.Params{}, fmt.Errorf("filter section: %w", err)
	}
	p := structfilter.DefaultParams()
	p.Spray = spray.Params{
		Radius1: c.Filter.Radius1,
		Radius2: c.Filter.Radius2,
		Order:   c.Filter.Order,
		Eps:     c.Filter.Eps,
	}
	p.Median = median.Params{Mode: mode, Window: c.Filter.Window}
	p.Workers = c.Processing.NumCores
	return p, nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
