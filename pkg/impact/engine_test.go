package impact

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarzal/quintile/pkg/model"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// monotonePopulation builds n episodes where the "signal" exposure equals
// the return, so the top bucket is strictly better than everything else
func monotonePopulation(n int) []*model.Episode {
	episodes := make([]*model.Episode, n)
	for i := 0; i < n; i++ {
		ret := -0.05 + 0.1*float64(i)/float64(n-1)
		closed := testNow.AddDate(0, 0, -(n - i))
		ep := model.NewEpisode("BTCUSDT", "momo", closed.Add(-24*time.Hour), closed, ret, 1)
		ep.EpisodeID = fmt.Sprintf("ep-%d", i)
		ep.Exposures["signal"] = ret
		ep.Exposures["noise"] = float64(i%7) - 3
		episodes[i] = ep
	}
	return episodes
}

func baseConfig() Config {
	cfg := DefaultConfig()
	cfg.Resamples = 200
	cfg.Parallelism = 2
	return cfg
}

func findScore(t *testing.T, scores []model.FactorScore, factor string, side model.Side) model.FactorScore {
	t.Helper()
	for _, s := range scores {
		if s.Factor == factor && s.Side == side {
			return s
		}
	}
	t.Fatalf("score for %s/%s not found", factor, side)
	return model.FactorScore{}
}

func TestScore_SignalFactorHasPositiveTopScore(t *testing.T) {
	episodes := monotonePopulation(100)
	engine := NewEngine(baseConfig())

	scores, err := engine.Score(context.Background(), episodes, []string{"signal", "noise"}, nil, testNow)
	require.NoError(t, err)
	require.Len(t, scores, 4) // two factors, two sides each

	top := findScore(t, scores, "signal", model.SideTop)
	bottom := findScore(t, scores, "signal", model.SideBottom)

	assert.True(t, top.Valid)
	assert.Positive(t, top.Score)
	assert.Positive(t, top.MeanDiff)
	assert.True(t, bottom.Valid)
	assert.Negative(t, bottom.Score)
	assert.Negative(t, bottom.MeanDiff)

	// The signal factor dominates the noise factor
	noiseTop := findScore(t, scores, "noise", model.SideTop)
	assert.Greater(t, top.Score, math.Abs(noiseTop.Score))
}

func TestScore_Deterministic(t *testing.T) {
	episodes := monotonePopulation(60)
	engine := NewEngine(baseConfig())

	first, err := engine.Score(context.Background(), episodes, []string{"signal", "noise"}, nil, testNow)
	require.NoError(t, err)
	second, err := engine.Score(context.Background(), episodes, []string{"signal", "noise"}, nil, testNow)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Key(), second[i].Key())
		assert.Equal(t, first[i].Score, second[i].Score)
		assert.Equal(t, first[i].BootstrapVar, second[i].BootstrapVar)
	}
}

func TestScore_PenaltyShrinksScore(t *testing.T) {
	episodes := monotonePopulation(80)

	loose := baseConfig()
	loose.PenaltyLambda = 0
	loose.UseSignificance = false
	tight := loose
	tight.PenaltyLambda = 1000

	looseScores, err := NewEngine(loose).Score(context.Background(), episodes, []string{"signal"}, nil, testNow)
	require.NoError(t, err)
	tightScores, err := NewEngine(tight).Score(context.Background(), episodes, []string{"signal"}, nil, testNow)
	require.NoError(t, err)

	looseTop := findScore(t, looseScores, "signal", model.SideTop)
	tightTop := findScore(t, tightScores, "signal", model.SideTop)

	// With no penalty the score is the raw mean difference
	assert.InDelta(t, looseTop.MeanDiff, looseTop.Score, 1e-12)
	assert.Less(t, tightTop.Score, looseTop.Score)
	assert.Positive(t, tightTop.Score)
}

func TestScore_EmptyBucketIsZeroNotError(t *testing.T) {
	// Two observed exposures over five buckets leave the top bucket empty
	episodes := monotonePopulation(10)
	for i, ep := range episodes {
		if i >= 2 {
			delete(ep.Exposures, "sparse")
		} else {
			ep.Exposures["sparse"] = float64(i)
		}
	}

	cfg := baseConfig()
	cfg.MinCoverage = 0

	scores, err := NewEngine(cfg).Score(context.Background(), episodes, []string{"sparse"}, nil, testNow)
	require.NoError(t, err)

	top := findScore(t, scores, "sparse", model.SideTop)
	assert.False(t, top.Valid)
	assert.Zero(t, top.Score)
	assert.False(t, math.IsNaN(top.Score))
}

func TestScore_CoverageFilter(t *testing.T) {
	episodes := monotonePopulation(50)
	for i, ep := range episodes {
		if i%4 != 0 {
			delete(ep.Exposures, "signal")
		}
	}

	cfg := baseConfig()
	cfg.MinCoverage = 0.5

	scores, err := NewEngine(cfg).Score(context.Background(), episodes, []string{"signal"}, nil, testNow)
	require.NoError(t, err)

	top := findScore(t, scores, "signal", model.SideTop)
	assert.False(t, top.Valid)
	assert.Zero(t, top.Score)
	assert.Less(t, top.Coverage, 0.5)
}

func TestScore_RecencyGateZeroesStaleFactors(t *testing.T) {
	episodes := monotonePopulation(60)

	cfg := baseConfig()
	cfg.RecencyGateDays = 30
	// Score as of a year after the last episode closed
	future := testNow.AddDate(1, 0, 0)

	scores, err := NewEngine(cfg).Score(context.Background(), episodes, []string{"signal"}, nil, future)
	require.NoError(t, err)

	top := findScore(t, scores, "signal", model.SideTop)
	assert.True(t, top.Valid)
	assert.Zero(t, top.RecencyWt)
	assert.Zero(t, top.Score)
}

func TestScore_RecencyHalfLife(t *testing.T) {
	episodes := monotonePopulation(60)

	cfg := baseConfig()
	cfg.UseSignificance = false
	cfg.RecencyHalfLifeDays = 10

	scores, err := NewEngine(cfg).Score(context.Background(), episodes, []string{"signal"}, nil, testNow)
	require.NoError(t, err)

	top := findScore(t, scores, "signal", model.SideTop)
	assert.Greater(t, top.RecencyWt, 0.0)
	assert.Less(t, top.RecencyWt, 1.0)
}

func TestScore_UsageDecayPenalizesRepeats(t *testing.T) {
	episodes := monotonePopulation(60)

	cfg := baseConfig()
	cfg.UsageLambda = 0.1

	fresh, err := NewEngine(cfg).Score(context.Background(), episodes, []string{"signal"}, nil, testNow)
	require.NoError(t, err)

	usage := UsageHistory{
		"signal:top": {testNow.AddDate(0, 0, -1), testNow.AddDate(0, 0, -2)},
	}
	used, err := NewEngine(cfg).Score(context.Background(), episodes, []string{"signal"}, usage, testNow)
	require.NoError(t, err)

	freshTop := findScore(t, fresh, "signal", model.SideTop)
	usedTop := findScore(t, used, "signal", model.SideTop)

	assert.Less(t, usedTop.UsageWt, 1.0)
	assert.Less(t, usedTop.Score, freshTop.Score)
}

func TestScore_MiddleReference(t *testing.T) {
	episodes := monotonePopulation(100)

	cfg := baseConfig()
	cfg.Reference = RefMiddle

	scores, err := NewEngine(cfg).Score(context.Background(), episodes, []string{"signal"}, nil, testNow)
	require.NoError(t, err)

	top := findScore(t, scores, "signal", model.SideTop)
	assert.True(t, top.Valid)
	assert.Positive(t, top.Score)
	assert.Equal(t, 60, top.RefSize) // middle three quintiles of 100
}

func TestNormalizeReturns_Degenerate(t *testing.T) {
	episodes := monotonePopulation(10)
	for _, ep := range episodes {
		ep.Return = 0.02
	}

	normalized := NormalizeReturns(episodes)
	require.Len(t, normalized, 10)
	for _, v := range normalized {
		assert.Zero(t, v)
	}
}

func TestWelchPValue(t *testing.T) {
	a := []float64{1.0, 1.1, 0.9, 1.05, 0.95, 1.02, 0.98}
	far := []float64{5.0, 5.1, 4.9, 5.05, 4.95, 5.02, 4.98}

	p := welchPValue(a, far)
	assert.Less(t, p, 0.001)

	same := welchPValue(a, a)
	assert.InDelta(t, 1.0, same, 1e-9)

	assert.Equal(t, 1.0, welchPValue([]float64{1}, far))
}

func TestBootstrapVariance_ShrinksWithSampleSize(t *testing.T) {
	small := make([]float64, 10)
	large := make([]float64, 1000)
	for i := range small {
		small[i] = float64(i%5) - 2
	}
	for i := range large {
		large[i] = float64(i%5) - 2
	}
	ref := []float64{-1, 0, 1, -0.5, 0.5, 0, 0, -1, 1, 0}

	vSmall := bootstrapVariance(rngFor(1, "small"), small, ref, 500)
	vLarge := bootstrapVariance(rngFor(1, "large"), large, ref, 500)

	assert.Positive(t, vSmall)
	assert.Positive(t, vLarge)
	assert.Greater(t, vSmall, vLarge)
}
