package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5, cfg.Scoring.Q)
	assert.Equal(t, 0.35, cfg.Selection.PrevalenceCap)
	assert.Equal(t, 32, cfg.Vector.Dimension)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
scoring:
  q: 10
  reference: middle
store:
  duckdb_path: /tmp/research.duckdb
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Scoring.Q)
	assert.Equal(t, "middle", cfg.Scoring.Reference)
	assert.Equal(t, "/tmp/research.duckdb", cfg.Store.DuckDBPath)
	// Untouched fields keep their defaults
	assert.Equal(t, 800, cfg.Scoring.Resamples)
	assert.Equal(t, "nats://localhost:4222", cfg.Queue.URL)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"small q":       "scoring:\n  q: 2\n",
		"bad reference": "scoring:\n  reference: extremes\n",
		"bad dimension": "vector:\n  dimension: 48\n",
		"zero resample": "scoring:\n  resamples: 0\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
