package rerank

import (
	"math"
	"sort"
	"time"

	"github.com/quarzal/quintile/pkg/store/milvus"
)

// TimeDecayConfig controls how the age of a matched episode shrinks its
// similarity score. An episode closed last month says more about the current
// regime than one closed three years ago at the same cosine similarity.
//
// Two weighting schemes are available: a smooth exponential decay driven by
// Lambda, and a three-segment step function (recent / medium / old) for runs
// that want coarse, explainable weights.
type TimeDecayConfig struct {
	Lambda float64 // decay rate per day for the exponential scheme

	UseSegments  bool
	RecentDays   float64 // age cutoff for the "recent" segment
	MediumDays   float64 // age cutoff for the "medium" segment
	RecentWeight float64
	MediumWeight float64
	OldWeight    float64
}

// DefaultTimeDecayConfig returns a gentle exponential decay. Episode history
// spans years, so the half life sits around 140 days.
func DefaultTimeDecayConfig() TimeDecayConfig {
	return TimeDecayConfig{
		Lambda:       0.005,
		RecentDays:   30,
		MediumDays:   365,
		RecentWeight: 1.0,
		MediumWeight: 0.7,
		OldWeight:    0.4,
	}
}

// SegmentConfig returns the step-function variant of the default config
func SegmentConfig() TimeDecayConfig {
	cfg := DefaultTimeDecayConfig()
	cfg.UseSegments = true
	return cfg
}

// weight maps an episode age in days to its decay weight
func (c TimeDecayConfig) weight(ageDays float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	if !c.UseSegments {
		return math.Exp(-c.Lambda * ageDays)
	}
	switch {
	case ageDays <= c.RecentDays:
		return c.RecentWeight
	case ageDays <= c.MediumDays:
		return c.MediumWeight
	default:
		return c.OldWeight
	}
}

// RankedResult is a similarity hit with its time-decayed final score
type RankedResult struct {
	milvus.SearchResult
	OriginalScore float32
	TimeWeight    float64
	FinalScore    float64
}

// Reranker reorders similarity hits by age-weighted score
type Reranker struct {
	config TimeDecayConfig
}

// NewReranker creates a reranker with the given configuration
func NewReranker(config TimeDecayConfig) *Reranker {
	return &Reranker{config: config}
}

// Rerank weights each hit's similarity by its time decay and returns the
// hits sorted by final score, best first
func (r *Reranker) Rerank(results []milvus.SearchResult, now time.Time) []RankedResult {
	ranked := make([]RankedResult, len(results))
	for i, res := range results {
		w := r.config.weight(now.Sub(res.ClosedAt).Hours() / 24)
		ranked[i] = RankedResult{
			SearchResult:  res,
			OriginalScore: res.Score,
			TimeWeight:    w,
			FinalScore:    float64(res.Score) * w,
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].FinalScore > ranked[j].FinalScore
	})
	return ranked
}

// TopN reranks and keeps the best n hits
func (r *Reranker) TopN(results []milvus.SearchResult, now time.Time, n int) []RankedResult {
	ranked := r.Rerank(results, now)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// FilterByMinScore drops hits whose final score fell below the threshold
func FilterByMinScore(results []RankedResult, minScore float64) []RankedResult {
	var kept []RankedResult
	for _, r := range results {
		if r.FinalScore >= minScore {
			kept = append(kept, r)
		}
	}
	return kept
}
