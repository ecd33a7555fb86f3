// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/amparaweb/config.yaml",
	"/etc/amparaweb/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config
// file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with the built-in defaults. These are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Geocode: GeocodeConfig{
			BaseURL:        "https://nominatim.openstreetmap.org",
			UserAgent:      "amparaweb/1.0",
			CacheTTL:       10 * time.Minute,
			MinInterval:    time.Second,
			BackoffInitial: 30 * time.Second,
			BackoffMax:     5 * time.Minute,
			Timeout:        6 * time.Second,
		},
		RoadSnap: RoadSnapConfig{
			Enabled:       true,
			BaseURL:       "https://api.mapbox.com",
			Token:         "",
			TokenURL:      "",
			TokenTTL:      0, // held until rejected
			CacheCapacity: 500,
			MinInterval:   300 * time.Millisecond,
			Timeout:       6 * time.Second,
		},
		Pipeline: PipelineConfig{
			TrailLength:   5,
			SweepInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if one exists)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile searches for a config file, preferring the env override.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so random environment variables never
// pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Geocode mappings
		"geocode_base_url":        "geocode.base_url",
		"geocode_user_agent":      "geocode.user_agent",
		"geocode_cache_ttl":       "geocode.cache_ttl",
		"geocode_min_interval":    "geocode.min_interval",
		"geocode_backoff_initial": "geocode.backoff_initial",
		"geocode_backoff_max":     "geocode.backoff_max",
		"geocode_timeout":         "geocode.timeout",

		// Road snap mappings
		"roadsnap_enabled":        "roadsnap.enabled",
		"roadsnap_base_url":       "roadsnap.base_url",
		"roadsnap_token":          "roadsnap.token",
		"roadsnap_token_url":      "roadsnap.token_url",
		"roadsnap_token_ttl":      "roadsnap.token_ttl",
		"roadsnap_cache_capacity": "roadsnap.cache_capacity",
		"roadsnap_min_interval":   "roadsnap.min_interval",
		"roadsnap_timeout":        "roadsnap.timeout",

		// Pipeline mappings
		"pipeline_trail_length":   "pipeline.trail_length",
		"pipeline_sweep_interval": "pipeline.sweep_interval",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
