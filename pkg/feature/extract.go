package feature

import (
	"fmt"
	"sort"

	"github.com/quarzal/quintile/pkg/model"
)

// Extractor builds fixed-dimension episode vectors for similarity search.
// It must be fitted on a population before vectors can be produced: the fit
// records per-column statistics so that query episodes are standardized
// against the same population as the indexed ones.
type Extractor struct {
	DataVersion int
	VectorDim   int     // target dimension (32 or 64)
	ClipStd     float64 // standard deviations for clipping (default 3.0)

	factors []string // deterministic column order
	stats   []ColumnStats
	fitted  bool
}

// baseColumns precede the factor exposure columns in every vector:
// return, duration, max adverse excursion
const baseColumns = 3

// NewExtractor creates a new extractor for the given factor set. The factor
// order inside the vector is sorted and therefore stable across runs.
func NewExtractor(dataVersion, vectorDim int, factors []string) *Extractor {
	sorted := append([]string(nil), factors...)
	sort.Strings(sorted)

	return &Extractor{
		DataVersion: dataVersion,
		VectorDim:   vectorDim,
		ClipStd:     3.0,
		factors:     sorted,
	}
}

// Columns returns the number of populated columns (the rest of the vector
// is zero padding up to VectorDim)
func (e *Extractor) Columns() int {
	return baseColumns + len(e.factors)
}

// Fit computes per-column population statistics from the given episodes
func (e *Extractor) Fit(episodes []*model.Episode) error {
	if len(episodes) == 0 {
		return fmt.Errorf("cannot fit extractor on empty population")
	}
	if e.Columns() > e.VectorDim {
		return fmt.Errorf("need %d columns but vector dimension is %d", e.Columns(), e.VectorDim)
	}

	e.stats = make([]ColumnStats, e.Columns())
	column := make([]float64, 0, len(episodes))

	for c := 0; c < e.Columns(); c++ {
		column = column[:0]
		for _, ep := range episodes {
			// Episodes without an exposure are not observations of that
			// factor, so they stay out of the column statistics.
			if c >= baseColumns {
				if _, ok := ep.Exposure(e.factors[c-baseColumns]); !ok {
					continue
				}
			}
			column = append(column, e.raw(ep, c))
		}
		e.stats[c] = FitColumn(column)
	}

	e.fitted = true
	return nil
}

// Vector standardizes one episode into a fixed-dimension vector. Missing
// factor exposures standardize from the column mean, i.e. to zero.
func (e *Extractor) Vector(ep *model.Episode) (model.EpisodeVector, error) {
	if !e.fitted {
		return nil, fmt.Errorf("extractor not fitted")
	}

	v := model.NewEpisodeVector(e.VectorDim)
	for c := 0; c < e.Columns(); c++ {
		raw := e.raw(ep, c)
		if c >= baseColumns {
			if _, ok := ep.Exposure(e.factors[c-baseColumns]); !ok {
				raw = e.stats[c].Mean
			}
		}
		v[c] = float32(e.stats[c].Standardize(raw, e.ClipStd))
	}
	return v, nil
}

// raw returns the unstandardized value of column c for an episode
func (e *Extractor) raw(ep *model.Episode, c int) float64 {
	switch c {
	case 0:
		return ep.Return
	case 1:
		return ep.DurationDays()
	case 2:
		return ep.MaxAdverse
	default:
		v, _ := ep.Exposure(e.factors[c-baseColumns])
		return v
	}
}
