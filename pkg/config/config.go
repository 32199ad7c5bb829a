// Package config provides configuration loading and management for tissueseg.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tissueseg/pkg/regions"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Segmentation parameters
	Segmentation struct {
		// Channel selects which image channel to threshold (0 = red/gray)
		Channel int `yaml:"channel"`

		// Threshold is the normalized cutoff in [0,1]. A negative value
		// asks for an automatic Otsu threshold.
		Threshold float64 `yaml:"threshold"`

		// Foreground selects which side of the threshold is tissue:
		// "below" or "above"
		Foreground string `yaml:"foreground"`

		// StructuringRadius is the disk radius for the morphological
		// open/close cleanup pass
		StructuringRadius int `yaml:"structuringRadius"`
	} `yaml:"segmentation"`

	// Filter parameters
	Filter struct {
		// MinArea drops labeled regions smaller than this many pixels
		MinArea int `yaml:"minArea"`

		// ExcludeLabels drops regions by their label id. Label ids are a
		// per-run calibration artifact: they are only stable for a fixed
		// image and fixed segmentation parameters.
		ExcludeLabels []int `yaml:"excludeLabels"`

		// ExcludeRegions drops regions whose centroid falls within a
		// selector circle, a position-based alternative to label ids
		ExcludeRegions []regions.CentroidSelector `yaml:"excludeRegions"`
	} `yaml:"filter"`

	// Polygon parameters
	Polygon struct {
		// KeepFraction is the fraction of ring vertices to keep during
		// simplification, in (0,1]. 1 disables simplification.
		KeepFraction float64 `yaml:"keepFraction"`

		// FlipY converts polygons to Cartesian orientation before output
		FlipY bool `yaml:"flipY"`

		// FootprintVertices is the polygon vertex count used to
		// approximate each spot's circular footprint
		FootprintVertices int `yaml:"footprintVertices"`
	} `yaml:"polygon"`

	// Output parameters
	Output struct {
		// BoundaryName is the key the tissue boundary is stored under
		BoundaryName string `yaml:"boundaryName"`

		// SaveIntermediaryResults determines whether to save intermediary processing results
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default segmentation parameters
	cfg.Segmentation.Channel = 0
	cfg.Segmentation.Threshold = 0.8
	cfg.Segmentation.Foreground = "below"
	cfg.Segmentation.StructuringRadius = 2

	// Set default filter parameters
	cfg.Filter.MinArea = 64

	// Set default polygon parameters
	cfg.Polygon.KeepFraction = 0.2
	cfg.Polygon.FlipY = true
	cfg.Polygon.FootprintVertices = 16

	// Set default output parameters
	cfg.Output.BoundaryName = "tissue"
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.Verbose = true

	return cfg
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Segmentation.Channel < 0 {
		return fmt.Errorf("segmentation.channel %d must not be negative", c.Segmentation.Channel)
	}
	if c.Segmentation.Threshold > 1 {
		return fmt.Errorf("segmentation.threshold %g must be in [0,1] or negative for auto", c.Segmentation.Threshold)
	}
	if c.Segmentation.Foreground != "below" && c.Segmentation.Foreground != "above" {
		return fmt.Errorf("segmentation.foreground %q must be \"below\" or \"above\"", c.Segmentation.Foreground)
	}
	if c.Segmentation.StructuringRadius < 0 {
		return fmt.Errorf("segmentation.structuringRadius %d must not be negative", c.Segmentation.StructuringRadius)
	}
	if c.Filter.MinArea < 0 {
		return fmt.Errorf("filter.minArea %d must not be negative", c.Filter.MinArea)
	}
	if c.Polygon.KeepFraction <= 0 || c.Polygon.KeepFraction > 1 {
		return fmt.Errorf("polygon.keepFraction %g must be in (0,1]", c.Polygon.KeepFraction)
	}
	if c.Polygon.FootprintVertices < 3 {
		return fmt.Errorf("polygon.footprintVertices %d must be at least 3", c.Polygon.FootprintVertices)
	}
	if c.Output.BoundaryName == "" {
		return fmt.Errorf("output.boundaryName must not be empty")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
