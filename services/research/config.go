// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package research

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds research service configuration options.
//
// Values can be populated from environment variables (ConfigFromEnv),
// a YAML file merged over defaults, or programmatically for testing.
// All fields have sensible defaults applied by New().
type Config struct {
	// Port is the HTTP server port. Default: 12230
	Port int `yaml:"port"`

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses GIN_MODE env var or "debug"
	GinMode string `yaml:"gin_mode"`

	// DataDir is the BadgerDB directory for session snapshots. Empty
	// keeps snapshots in memory only.
	DataDir string `yaml:"data_dir"`

	// OTelEndpoint is the OpenTelemetry collector endpoint. Empty
	// disables trace export.
	// Example: "localhost:4317"
	OTelEndpoint string `yaml:"otel_endpoint"`

	// ArchiveMaxNodes is the service-wide retention ceiling applied to
	// archive requests. Zero means requests are taken at face value.
	// Hot-reloadable.
	ArchiveMaxNodes int `yaml:"archive_max_nodes"`

	// LayoutCacheMaxEntries is the layout cache entry ceiling.
	// Default: 128. Hot-reloadable.
	LayoutCacheMaxEntries int `yaml:"layout_cache_max_entries"`

	// LayoutCacheMaxBytes is the layout cache estimated-memory ceiling.
	// Default: 8 MiB. Hot-reloadable.
	LayoutCacheMaxBytes int64 `yaml:"layout_cache_max_bytes"`

	// LayoutWorkers is the layout pool size. Default: 2
	LayoutWorkers int `yaml:"layout_workers"`

	// LayoutQueueSize is the layout pending-request buffer. Default: 16
	LayoutQueueSize int `yaml:"layout_queue_size"`

	// ConfigFile is an optional YAML file merged over the config at
	// startup and watched for changes; edits to the hot-reloadable
	// limits take effect without a restart.
	ConfigFile string `yaml:"-"`
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12230
	}
	if cfg.LayoutCacheMaxEntries == 0 {
		cfg.LayoutCacheMaxEntries = 128
	}
	if cfg.LayoutCacheMaxBytes == 0 {
		cfg.LayoutCacheMaxBytes = 8 << 20
	}
	if cfg.LayoutWorkers == 0 {
		cfg.LayoutWorkers = 2
	}
	if cfg.LayoutQueueSize == 0 {
		cfg.LayoutQueueSize = 16
	}
	return cfg
}

// ConfigFromEnv builds a Config from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Port:                  getEnvInt("RESEARCH_PORT", 12230),
		GinMode:               getEnvString("GIN_MODE", ""),
		DataDir:               getEnvString("RESEARCH_DATA_DIR", ""),
		OTelEndpoint:          getEnvString("RESEARCH_OTEL_ENDPOINT", ""),
		ArchiveMaxNodes:       getEnvInt("RESEARCH_ARCHIVE_MAX_NODES", 0),
		LayoutCacheMaxEntries: getEnvInt("RESEARCH_LAYOUT_CACHE_MAX_ENTRIES", 0),
		LayoutWorkers:         getEnvInt("RESEARCH_LAYOUT_WORKERS", 0),
		ConfigFile:            getEnvString("RESEARCH_CONFIG_FILE", ""),
	}
}

// loadConfigFile merges the YAML file at path over cfg. Only fields
// present in the file override; absent fields keep their values.
func loadConfigFile(cfg Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file %s: %w", path, err)
	}

	overlay := cfg
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	overlay.ConfigFile = cfg.ConfigFile
	return overlay, nil
}

// getEnvInt returns an environment variable as int, or defaultVal if
// not set or invalid.
func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// getEnvString returns an environment variable, or defaultVal if not
// set.
func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
