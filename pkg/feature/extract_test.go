package feature

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarzal/quintile/pkg/model"
)

func testPopulation(n int) []*model.Episode {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	episodes := make([]*model.Episode, n)
	for i := 0; i < n; i++ {
		opened := base.AddDate(0, 0, i)
		closed := opened.Add(time.Duration(12+i) * time.Hour)
		ep := model.NewEpisode("ETHUSDT", "meanrev", opened, closed, 0.01*float64(i-n/2), 1)
		ep.EpisodeID = fmt.Sprintf("ep-%d", i)
		ep.MaxAdverse = -0.01 * float64(i%4)
		ep.Exposures["mom"] = float64(i)
		ep.Exposures["vol"] = float64(i * i)
		episodes[i] = ep
	}
	return episodes
}

func TestExtractor_FitAndVector(t *testing.T) {
	episodes := testPopulation(20)
	ex := NewExtractor(1, model.VectorDim32, []string{"vol", "mom"})

	require.NoError(t, ex.Fit(episodes))
	assert.Equal(t, 5, ex.Columns())

	v, err := ex.Vector(episodes[0])
	require.NoError(t, err)
	require.Len(t, v, model.VectorDim32)

	// Populated columns are in [-1, 1], padding is zero
	for c := 0; c < ex.Columns(); c++ {
		assert.GreaterOrEqual(t, float64(v[c]), -1.0)
		assert.LessOrEqual(t, float64(v[c]), 1.0)
	}
	for c := ex.Columns(); c < model.VectorDim32; c++ {
		assert.Zero(t, v[c])
	}
}

func TestExtractor_FitSkipsMissingExposures(t *testing.T) {
	episodes := testPopulation(8)
	for i, ep := range episodes {
		delete(ep.Exposures, "mom")
		delete(ep.Exposures, "vol")
		if i < 4 {
			// Alternate 10 and 20 so the observed mean is 15 and the
			// population std is 5.
			ep.Exposures["sparse"] = 10 + 10*float64(i%2)
		}
	}

	ex := NewExtractor(1, model.VectorDim32, []string{"sparse"})
	require.NoError(t, ex.Fit(episodes))

	// An observed value of 10 is one std below the observed mean. Were the
	// missing episodes fitted as zeros, the column mean would drop to 7.5
	// and 10 would standardize positive instead.
	v, err := ex.Vector(episodes[0])
	require.NoError(t, err)
	assert.InDelta(t, -1.0/3.0, float64(v[3]), 1e-6)

	// Episodes without the exposure still standardize to zero
	v, err = ex.Vector(episodes[5])
	require.NoError(t, err)
	assert.Zero(t, v[3])
}

func TestExtractor_FactorOrderIsSorted(t *testing.T) {
	episodes := testPopulation(10)

	a := NewExtractor(1, model.VectorDim32, []string{"vol", "mom"})
	b := NewExtractor(1, model.VectorDim32, []string{"mom", "vol"})
	require.NoError(t, a.Fit(episodes))
	require.NoError(t, b.Fit(episodes))

	va, err := a.Vector(episodes[3])
	require.NoError(t, err)
	vb, err := b.Vector(episodes[3])
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}

func TestExtractor_MissingExposureMapsToZero(t *testing.T) {
	episodes := testPopulation(20)
	ex := NewExtractor(1, model.VectorDim32, []string{"mom"})
	require.NoError(t, ex.Fit(episodes))

	query := model.NewEpisode("ETHUSDT", "meanrev", episodes[0].OpenedAt, episodes[0].ClosedAt, 0.01, 1)
	// no "mom" exposure set

	v, err := ex.Vector(query)
	require.NoError(t, err)
	assert.Zero(t, v[3]) // first factor column
}

func TestExtractor_DegenerateColumn(t *testing.T) {
	episodes := testPopulation(10)
	for _, ep := range episodes {
		ep.Exposures["flat"] = 7.5
	}

	ex := NewExtractor(1, model.VectorDim32, []string{"flat"})
	require.NoError(t, ex.Fit(episodes))

	v, err := ex.Vector(episodes[4])
	require.NoError(t, err)
	assert.Zero(t, v[3])
}

func TestExtractor_FitErrors(t *testing.T) {
	ex := NewExtractor(1, model.VectorDim32, nil)
	assert.Error(t, ex.Fit(nil))

	tooMany := make([]string, model.VectorDim32)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("f%d", i)
	}
	ex = NewExtractor(1, model.VectorDim32, tooMany)
	assert.Error(t, ex.Fit(testPopulation(5)))

	ex = NewExtractor(1, model.VectorDim32, []string{"mom"})
	_, err := ex.Vector(testPopulation(5)[0])
	assert.Error(t, err)
}

func TestStandardize_ClipsAndScales(t *testing.T) {
	cs := ColumnStats{Mean: 10, Std: 2}

	assert.InDelta(t, 0, cs.Standardize(10, 3), 1e-12)
	assert.InDelta(t, 0.5, cs.Standardize(13, 3), 1e-12)
	assert.InDelta(t, 1, cs.Standardize(100, 3), 1e-12)
	assert.InDelta(t, -1, cs.Standardize(-100, 3), 1e-12)
}

func TestFitColumn(t *testing.T) {
	cs := FitColumn([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5, cs.Mean, 1e-12)
	assert.InDelta(t, 2, cs.Std, 1e-12)
}
