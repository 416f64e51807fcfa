//-------------------------------------------------------------------------
//
// ecomdw - E-Commerce Warehouse ETL
//
// Copyright (c) 2025 - 2026, the ecomdw authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for ecomdw.
// Configuration is loaded from config files and CLI flags (no environment variables).
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// DateFormat is the layout used for date values in config files and flags.
const DateFormat = "2006-01-02"

// Config holds all configuration for ecomdw.
type Config struct {
	// Connection is the PostgreSQL connection string.
	Connection string `mapstructure:"connection"`

	// DataDir is the directory holding the source CSV files.
	DataDir string `mapstructure:"data_dir"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Pipeline holds configuration for pipeline runs.
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Generate holds configuration for the sample data generator.
	Generate GenerateConfig `mapstructure:"generate"`
}

// PipelineConfig holds configuration for the ETL pipeline.
type PipelineConfig struct {
	// StrictQuality promotes quality check failures to a pipeline error.
	// By default the quality stage is advisory.
	StrictQuality bool `mapstructure:"strict_quality"`

	// DateDimStart is the first date loaded into the date dimension.
	DateDimStart string `mapstructure:"date_dim_start"`

	// DateDimEnd is the last date loaded into the date dimension.
	DateDimEnd string `mapstructure:"date_dim_end"`
}

// GenerateConfig holds configuration for sample data generation.
type GenerateConfig struct {
	// Customers is the number of customer rows to generate.
	Customers int `mapstructure:"customers"`

	// Products is the number of product rows to generate.
	Products int `mapstructure:"products"`

	// Orders is the number of order rows to generate.
	Orders int `mapstructure:"orders"`

	// Seed makes generation deterministic when non-zero.
	Seed uint64 `mapstructure:"seed"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		DataDir:  "./data/raw",
		LogLevel: "info",
		Pipeline: PipelineConfig{
			StrictQuality: false,
			DateDimStart:  "2022-01-01",
			DateDimEnd:    "2025-12-31",
		},
		Generate: GenerateConfig{
			Customers: 5000,
			Products:  500,
			Orders:    20000,
			Seed:      42,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./ecomdw.yaml
// 3. ~/.config/ecomdw/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("ecomdw")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "ecomdw"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required")
	}
	return nil
}

// ValidatePipeline checks configuration required for pipeline runs.
func (c *Config) ValidatePipeline() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	start, err := time.Parse(DateFormat, c.Pipeline.DateDimStart)
	if err != nil {
		return fmt.Errorf("invalid date_dim_start: %w", err)
	}
	end, err := time.Parse(DateFormat, c.Pipeline.DateDimEnd)
	if err != nil {
		return fmt.Errorf("invalid date_dim_end: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("date_dim_end must not precede date_dim_start")
	}
	return nil
}

// ValidateGenerate checks configuration required for the generate command.
func (c *Config) ValidateGenerate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if c.Generate.Customers < 1 {
		return fmt.Errorf("generate.customers must be at least 1")
	}
	if c.Generate.Products < 1 {
		return fmt.Errorf("generate.products must be at least 1")
	}
	if c.Generate.Orders < 1 {
		return fmt.Errorf("generate.orders must be at least 1")
	}
	return nil
}

// DateDimRange returns the parsed date dimension bounds.
// ValidatePipeline must have succeeded first.
func (c *Config) DateDimRange() (time.Time, time.Time) {
	start, _ := time.Parse(DateFormat, c.Pipeline.DateDimStart)
	end, _ := time.Parse(DateFormat, c.Pipeline.DateDimEnd)
	return start, end
}
