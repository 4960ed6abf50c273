package model

import (
	"fmt"
	"time"
)

// Side identifies which extreme quintile bucket a score refers to
type Side string

const (
	SideTop    Side = "top"
	SideBottom Side = "bottom"
)

// Opposite returns the other extreme side
func (s Side) Opposite() Side {
	if s == SideTop {
		return SideBottom
	}
	return SideTop
}

// FactorScore holds the penalized impact score for one (factor, side) pair
// together with the diagnostics that produced it
type FactorScore struct {
	Factor       string  `json:"factor"`
	Side         Side    `json:"side"`
	Score        float64 `json:"score"`         // penalized, significance-scaled score
	MeanDiff     float64 `json:"mean_diff"`     // raw bucket-vs-reference mean difference
	BootstrapVar float64 `json:"bootstrap_var"` // variance of resampled mean differences
	PValue       float64 `json:"p_value"`       // Welch test p-value, 1 when not computed
	Prevalence   float64 `json:"prevalence"`    // fraction of episodes in the bucket
	Coverage     float64 `json:"coverage"`      // fraction of episodes with the factor observed
	BucketSize   int     `json:"bucket_size"`
	RefSize      int     `json:"ref_size"`
	RecencyWt    float64 `json:"recency_wt"` // recency weight applied, 1 when disabled
	UsageWt      float64 `json:"usage_wt"`   // usage-decay weight applied, 1 when disabled
	Valid        bool    `json:"valid"`      // false when the bucket or reference was empty
}

// Key returns the canonical identifier for the (factor, side) pair
func (fs FactorScore) Key() string {
	return fs.Factor + ":" + string(fs.Side)
}

// String returns a formatted one-line summary
func (fs FactorScore) String() string {
	return fmt.Sprintf(
		"%-24s %-6s score=%+.5f diff=%+.5f var=%.6f p=%.3f prev=%.3f cov=%.3f n=%d",
		fs.Factor, fs.Side, fs.Score, fs.MeanDiff, fs.BootstrapVar, fs.PValue,
		fs.Prevalence, fs.Coverage, fs.BucketSize,
	)
}

// Recommendation is a selected portfolio switch proposal: enter (top) or
// avoid (bottom) episodes whose factor exposure falls in the extreme bucket
type Recommendation struct {
	RunID      string    `json:"run_id"`
	Factor     string    `json:"factor"`
	Side       Side      `json:"side"`
	Score      float64   `json:"score"`
	Prevalence float64   `json:"prevalence"`
	Rank       int       `json:"rank"` // 1-based, by descending |score|
	CreatedAt  time.Time `json:"created_at"`
}

// ReturnBucket constants for Milvus metadata filtering
const (
	ReturnStrongLoss = -2
	ReturnLoss       = -1
	ReturnFlat       = 0
	ReturnGain       = 1
	ReturnStrongGain = 2
)

// ClassifyReturnBucket classifies an episode return into a bucket
func ClassifyReturnBucket(ret float64) int {
	switch {
	case ret < -0.05:
		return ReturnStrongLoss
	case ret < -0.005:
		return ReturnLoss
	case ret < 0.005:
		return ReturnFlat
	case ret < 0.05:
		return ReturnGain
	default:
		return ReturnStrongGain
	}
}

// ClassifyDurationBucket classifies a holding period into a bucket (0-9)
func ClassifyDurationBucket(days float64) int {
	// log-ish scale: intraday 0, ~week 4-5, months 9
	boundaries := []float64{0.25, 1, 2, 4, 7, 14, 30, 60, 120}
	for i, b := range boundaries {
		if days < b {
			return i
		}
	}
	return 9
}
