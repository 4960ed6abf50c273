package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEpisodeID_Deterministic(t *testing.T) {
	opened := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	closed := opened.Add(36 * time.Hour)

	a := GenerateEpisodeID("BTCUSDT", "momo", opened, closed, 1)
	b := GenerateEpisodeID("BTCUSDT", "momo", opened, closed, 1)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	assert.NotEqual(t, a, GenerateEpisodeID("ETHUSDT", "momo", opened, closed, 1))
	assert.NotEqual(t, a, GenerateEpisodeID("BTCUSDT", "meanrev", opened, closed, 1))
	assert.NotEqual(t, a, GenerateEpisodeID("BTCUSDT", "momo", opened, closed, 2))
}

func TestEpisode_Accessors(t *testing.T) {
	opened := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	ep := NewEpisode("BTCUSDT", "momo", opened, opened.Add(36*time.Hour), 0.02, 1)
	ep.Exposures["mom"] = 1.5

	assert.Equal(t, 36*time.Hour, ep.Duration())
	assert.InDelta(t, 1.5, ep.DurationDays(), 1e-12)
	assert.True(t, ep.IsWin())

	v, ok := ep.Exposure("mom")
	require.True(t, ok)
	assert.InDelta(t, 1.5, v, 1e-12)
	_, ok = ep.Exposure("vol")
	assert.False(t, ok)
}

func TestSide_Opposite(t *testing.T) {
	assert.Equal(t, SideBottom, SideTop.Opposite())
	assert.Equal(t, SideTop, SideBottom.Opposite())
}

func TestFactorScore_Key(t *testing.T) {
	fs := FactorScore{Factor: "mom", Side: SideBottom}
	assert.Equal(t, "mom:bottom", fs.Key())
}

func TestClassifyReturnBucket(t *testing.T) {
	assert.Equal(t, ReturnStrongLoss, ClassifyReturnBucket(-0.10))
	assert.Equal(t, ReturnLoss, ClassifyReturnBucket(-0.02))
	assert.Equal(t, ReturnFlat, ClassifyReturnBucket(0))
	assert.Equal(t, ReturnGain, ClassifyReturnBucket(0.02))
	assert.Equal(t, ReturnStrongGain, ClassifyReturnBucket(0.10))
}

func TestClassifyDurationBucket(t *testing.T) {
	assert.Equal(t, 0, ClassifyDurationBucket(0.1))
	assert.Equal(t, 1, ClassifyDurationBucket(0.5))
	assert.Equal(t, 4, ClassifyDurationBucket(5))
	assert.Equal(t, 9, ClassifyDurationBucket(400))
}
