package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "episodes.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const csvHeader = "symbol,strategy,opened_at,closed_at,return,max_adverse,mom,vol\n"

func TestCSVSource_FetchEpisodes(t *testing.T) {
	path := writeCSV(t, csvHeader+
		"BTCUSDT,momo,2024-01-01T00:00:00Z,2024-01-03T00:00:00Z,0.05,-0.02,1.5,0.3\n"+
		"ETHUSDT,meanrev,2024-01-02T00:00:00Z,2024-01-02T12:00:00Z,-0.01,,0.2,\n")

	episodes, err := NewCSVSource(path, 2).FetchEpisodes(context.Background())
	require.NoError(t, err)
	require.Len(t, episodes, 2)

	first := episodes[0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, "momo", first.Strategy)
	assert.InDelta(t, 0.05, first.Return, 1e-12)
	assert.InDelta(t, -0.02, first.MaxAdverse, 1e-12)
	assert.Equal(t, 2, first.DataVersion)
	assert.InDelta(t, 2.0, first.DurationDays(), 1e-9)
	assert.Equal(t, map[string]float64{"mom": 1.5, "vol": 0.3}, first.Exposures)

	// Empty cells mean missing, not zero
	second := episodes[1]
	assert.Zero(t, second.MaxAdverse)
	_, ok := second.Exposure("vol")
	assert.False(t, ok)
	v, ok := second.Exposure("mom")
	assert.True(t, ok)
	assert.InDelta(t, 0.2, v, 1e-12)
}

func TestCSVSource_ParseErrors(t *testing.T) {
	cases := map[string]string{
		"bad timestamp": csvHeader + "BTCUSDT,momo,yesterday,2024-01-03T00:00:00Z,0.05,,1,1\n",
		"bad return":    csvHeader + "BTCUSDT,momo,2024-01-01T00:00:00Z,2024-01-03T00:00:00Z,five,,1,1\n",
		"bad exposure":  csvHeader + "BTCUSDT,momo,2024-01-01T00:00:00Z,2024-01-03T00:00:00Z,0.05,,high,1\n",
		"short header":  "symbol,strategy\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCSVSource(writeCSV(t, content), 1).FetchEpisodes(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestCSVSource_MissingFile(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"), 1).FetchEpisodes(context.Background())
	assert.Error(t, err)
}
