// Copyright (C) 2026 CodeSeeker Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "none", cfg.Persistence.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Query.CacheTTL)
	assert.Equal(t, 256, cfg.Query.CacheSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
store:
  max_nodes: 50000
  max_triads: 200000
persistence:
  driver: sqlite
  path: /tmp/graph.db
  restore_on_start: true
query:
  cache_ttl: 30s
  cache_size: 64
  invalidate_on_write: true
logging:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 50000, cfg.Store.MaxNodes)
	assert.Equal(t, "sqlite", cfg.Persistence.Driver)
	assert.True(t, cfg.Persistence.RestoreOnStart)
	assert.Equal(t, 30*time.Second, cfg.Query.CacheTTL)
	assert.True(t, cfg.Query.InvalidateOnWrite)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: warn
  format: text
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "none", cfg.Persistence.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Query.CacheTTL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"unknown driver", "persistence:\n  driver: dynamo\n"},
		{"unknown log level", "logging:\n  level: loud\n  format: text\n"},
		{"sqlite without path", "persistence:\n  driver: sqlite\n"},
		{"badger without path", "persistence:\n  driver: badger\n"},
		{"negative max nodes", "store:\n  max_nodes: -1\n"},
		{"malformed yaml", "store: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.contents))
			assert.Error(t, err)
		})
	}
}

func TestLoadBadgerInMemoryNeedsNoPath(t *testing.T) {
	path := writeConfig(t, `
persistence:
  driver: badger
  in_memory: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Persistence.InMemory)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
