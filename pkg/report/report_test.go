package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarzal/quintile/pkg/model"
)

func reportEpisodes(n int) []*model.Episode {
	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	episodes := make([]*model.Episode, n)
	for i := 0; i < n; i++ {
		opened := base.AddDate(0, 0, i)
		ret := -0.02 + 0.04*float64(i)/float64(n-1)
		ep := model.NewEpisode("BTCUSDT", "momo", opened, opened.Add(48*time.Hour), ret, 1)
		ep.EpisodeID = fmt.Sprintf("rep-%d", i)
		ep.Exposures["mom"] = float64(i)
		episodes[i] = ep
	}
	return episodes
}

func TestBuild_QuintileSpread(t *testing.T) {
	episodes := reportEpisodes(50)

	reports := Build(episodes, []string{"mom"}, 5)
	require.Len(t, reports, 1)

	r := reports[0]
	assert.Equal(t, "mom", r.Factor)
	assert.InDelta(t, 1.0, r.Coverage, 1e-12)
	require.Len(t, r.Buckets, 5)

	for b, bucket := range r.Buckets {
		assert.Equal(t, b, bucket.Bucket)
		assert.Equal(t, 10, bucket.SampleCount)
		assert.InDelta(t, 2.0, bucket.MeanDuration, 1e-9)
	}

	// Exposure tracks the return, so the spread is positive and each bucket
	// mean exceeds the previous one
	assert.Positive(t, r.Spread())
	for b := 1; b < 5; b++ {
		assert.Greater(t, r.Buckets[b].MeanReturn, r.Buckets[b-1].MeanReturn)
	}
	assert.Zero(t, r.Buckets[0].HitRate)
	assert.InDelta(t, 1.0, r.Buckets[4].HitRate, 1e-12)
}

func TestBuild_SortsByFactor(t *testing.T) {
	episodes := reportEpisodes(20)
	for _, ep := range episodes {
		ep.Exposures["alpha"] = ep.Exposures["mom"]
	}

	reports := Build(episodes, []string{"mom", "alpha"}, 5)
	require.Len(t, reports, 2)
	assert.Equal(t, "alpha", reports[0].Factor)
	assert.Equal(t, "mom", reports[1].Factor)
}

func TestBuild_EmptyBuckets(t *testing.T) {
	episodes := reportEpisodes(10)
	for i, ep := range episodes {
		if i >= 2 {
			delete(ep.Exposures, "mom")
		}
	}

	reports := Build(episodes, []string{"mom"}, 5)
	require.Len(t, reports, 1)

	r := reports[0]
	assert.InDelta(t, 0.2, r.Coverage, 1e-12)
	assert.Equal(t, 0, r.Buckets[4].SampleCount)
	assert.Zero(t, r.Buckets[4].MeanReturn)
}

func TestFactorReport_String(t *testing.T) {
	episodes := reportEpisodes(25)
	reports := Build(episodes, []string{"mom"}, 5)

	out := reports[0].String()
	assert.True(t, strings.HasPrefix(out, "mom (coverage 100.0%"))
	assert.Contains(t, out, "bucket")
	assert.Equal(t, 7, strings.Count(out, "\n")) // header lines plus five buckets
}

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	assert.InDelta(t, 3, percentile(sorted, 50), 1e-12)
	assert.InDelta(t, 1, percentile(sorted, 0), 1e-12)
	assert.InDelta(t, 5, percentile(sorted, 100), 1e-12)
	assert.InDelta(t, 1.4, percentile(sorted, 10), 1e-12)

	assert.Zero(t, percentile(nil, 50))
	assert.InDelta(t, 7, percentile([]float64{7}, 90), 1e-12)
}
