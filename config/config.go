// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates the YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// maxConfigSize guards against accidentally loading a huge file.
const maxConfigSize = 1 << 20 // 1MB

// Config is the root configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Query       QueryConfig       `yaml:"query"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// StoreConfig bounds the in-memory graph.
type StoreConfig struct {
	// MaxNodes caps the node count. Zero uses the store default.
	MaxNodes int `yaml:"max_nodes" validate:"gte=0"`

	// MaxTriads caps the triad count. Zero uses the store default.
	MaxTriads int `yaml:"max_triads" validate:"gte=0"`
}

// PersistenceConfig selects the durable mirror behind the store.
type PersistenceConfig struct {
	// Driver is none, sqlite, or badger.
	Driver string `yaml:"driver" validate:"oneof=none sqlite badger"`

	// Path is the database file (sqlite) or directory (badger). Required
	// unless the driver is none or InMemory is set.
	Path string `yaml:"path,omitempty"`

	// InMemory runs the badger driver without a backing directory.
	InMemory bool `yaml:"in_memory,omitempty"`

	// RestoreOnStart loads the persisted graph into the store at boot.
	RestoreOnStart bool `yaml:"restore_on_start,omitempty"`
}

// QueryConfig tunes the query engine.
type QueryConfig struct {
	// CacheTTL bounds shortest-path cache staleness.
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`

	// CacheSize caps the path cache entry count.
	CacheSize int `yaml:"cache_size" validate:"gte=0"`

	// InvalidateOnWrite drops cached paths on any graph mutation.
	InvalidateOnWrite bool `yaml:"invalidate_on_write,omitempty"`
}

// LoggingConfig tunes the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is text or json.
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Persistence: PersistenceConfig{Driver: "none"},
		Query: QueryConfig{
			CacheTTL:  5 * time.Minute,
			CacheSize: 256,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads and validates the configuration at path. Fields absent from
// the file keep their defaults.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config %q: %w", path, err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config %q exceeds %d bytes", path, maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Persistence.Driver == "sqlite" && c.Persistence.Path == "" {
		return fmt.Errorf("persistence.path is required for the sqlite driver")
	}
	if c.Persistence.Driver == "badger" && c.Persistence.Path == "" && !c.Persistence.InMemory {
		return fmt.Errorf("persistence.path is required for the badger driver unless in_memory is set")
	}
	return nil
}
