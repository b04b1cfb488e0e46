package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Default values returned by the Get* accessors when a field is unset.
const (
	defaultForgettingFactor    = 0.1
	defaultEarthRadiusMeters   = 6378100.0
	defaultConsolidateInterval = time.Hour
	defaultAvgInterval         = time.Minute
	defaultOverlapDistance     = 50.0
	defaultAssignRadius        = 100.0
)

// TuningConfig holds the place clustering parameters. Every field is
// optional; unset fields fall back to the defaults above.
type TuningConfig struct {
	// Clustering params
	ForgettingFactor  *float64 `json:"forgetting_factor,omitempty"`
	EarthRadiusMeters *float64 `json:"earth_radius_m,omitempty"`

	// Scheduling params
	ConsolidateInterval *string `json:"consolidate_interval,omitempty"` // duration string like "1h"
	DefaultAvgInterval  *string `json:"default_avg_interval,omitempty"` // duration string like "1m"

	// Overlap and assignment params (metres)
	OverlapDistanceMeters *float64 `json:"overlap_distance_m,omitempty"`
	AssignRadiusMeters    *float64 `json:"assign_radius_m,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// default value.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		ForgettingFactor:      ptrFloat64(defaultForgettingFactor),
		EarthRadiusMeters:     ptrFloat64(defaultEarthRadiusMeters),
		ConsolidateInterval:   ptrString(defaultConsolidateInterval.String()),
		DefaultAvgInterval:    ptrString(defaultAvgInterval.String()),
		OverlapDistanceMeters: ptrFloat64(defaultOverlapDistance),
		AssignRadiusMeters:    ptrFloat64(defaultAssignRadius),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
// Fields omitted from the JSON file keep their defaults, so partial
// configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/ or cmd/places/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ForgettingFactor != nil {
		if f := *c.ForgettingFactor; !(f > 0 && f <= 1) {
			return fmt.Errorf("forgetting_factor must be in (0, 1], got %f", f)
		}
	}

	if c.EarthRadiusMeters != nil {
		if r := *c.EarthRadiusMeters; !(r > 0) || math.IsInf(r, 0) {
			return fmt.Errorf("earth_radius_m must be positive and finite, got %f", r)
		}
	}

	if c.ConsolidateInterval != nil && *c.ConsolidateInterval != "" {
		d, err := time.ParseDuration(*c.ConsolidateInterval)
		if err != nil {
			return fmt.Errorf("invalid consolidate_interval '%s': %w", *c.ConsolidateInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("consolidate_interval must be positive, got %s", d)
		}
	}

	if c.DefaultAvgInterval != nil && *c.DefaultAvgInterval != "" {
		if _, err := time.ParseDuration(*c.DefaultAvgInterval); err != nil {
			return fmt.Errorf("invalid default_avg_interval '%s': %w", *c.DefaultAvgInterval, err)
		}
	}

	if c.OverlapDistanceMeters != nil && *c.OverlapDistanceMeters < 0 {
		return fmt.Errorf("overlap_distance_m must be non-negative, got %f", *c.OverlapDistanceMeters)
	}

	if c.AssignRadiusMeters != nil && *c.AssignRadiusMeters < 0 {
		return fmt.Errorf("assign_radius_m must be non-negative, got %f", *c.AssignRadiusMeters)
	}

	return nil
}

// GetForgettingFactor returns the forgetting_factor value or the default.
func (c *TuningConfig) GetForgettingFactor() float64 {
	if c.ForgettingFactor == nil {
		return defaultForgettingFactor
	}
	return *c.ForgettingFactor
}

// GetEarthRadius returns the earth_radius_m value or the default.
func (c *TuningConfig) GetEarthRadius() float64 {
	if c.EarthRadiusMeters == nil {
		return defaultEarthRadiusMeters
	}
	return *c.EarthRadiusMeters
}

// GetConsolidateInterval parses and returns the ConsolidateInterval as a time.Duration.
func (c *TuningConfig) GetConsolidateInterval() time.Duration {
	if c.ConsolidateInterval == nil || *c.ConsolidateInterval == "" {
		return defaultConsolidateInterval
	}
	d, err := time.ParseDuration(*c.ConsolidateInterval)
	if err != nil || d <= 0 {
		return defaultConsolidateInterval // default on parse error
	}
	return d
}

// GetDefaultAvgInterval parses and returns the DefaultAvgInterval as a time.Duration.
func (c *TuningConfig) GetDefaultAvgInterval() time.Duration {
	if c.DefaultAvgInterval == nil || *c.DefaultAvgInterval == "" {
		return defaultAvgInterval
	}
	d, err := time.ParseDuration(*c.DefaultAvgInterval)
	if err != nil {
		return defaultAvgInterval // default on parse error
	}
	return d
}

// GetOverlapDistance returns the overlap_distance_m value or the default.
func (c *TuningConfig) GetOverlapDistance() float64 {
	if c.OverlapDistanceMeters == nil {
		return defaultOverlapDistance
	}
	return *c.OverlapDistanceMeters
}

// GetAssignRadius returns the assign_radius_m value or the default.
func (c *TuningConfig) GetAssignRadius() float64 {
	if c.AssignRadiusMeters == nil {
		return defaultAssignRadius
	}
	return *c.AssignRadiusMeters
}
