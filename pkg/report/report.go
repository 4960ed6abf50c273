package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/quarzal/quintile/pkg/model"
	"github.com/quarzal/quintile/pkg/quantile"
)

// BucketStats summarizes episode performance inside one quantile bucket
type BucketStats struct {
	Bucket       int     // 0 = lowest exposures
	SampleCount  int
	MeanReturn   float64
	MedianReturn float64
	P10          float64
	P90          float64
	HitRate      float64 // fraction of episodes with positive return
	MeanDuration float64 // days
}

// FactorReport holds per-bucket performance for a single factor
type FactorReport struct {
	Factor   string
	Coverage float64
	Buckets  []BucketStats
}

// Build computes the quintile performance report for each factor
func Build(episodes []*model.Episode, factors []string, q int) []FactorReport {
	reports := make([]FactorReport, 0, len(factors))

	for _, factor := range factors {
		a := quantile.Assign(episodes, factor, q)

		r := FactorReport{
			Factor:   factor,
			Coverage: a.Coverage(),
			Buckets:  make([]BucketStats, len(a.Buckets)),
		}

		for b, idxs := range a.Buckets {
			r.Buckets[b] = bucketStats(b, episodes, idxs)
		}

		reports = append(reports, r)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Factor < reports[j].Factor
	})

	return reports
}

// bucketStats computes the summary for one bucket
func bucketStats(bucket int, episodes []*model.Episode, idxs []int) BucketStats {
	s := BucketStats{Bucket: bucket, SampleCount: len(idxs)}
	if len(idxs) == 0 {
		return s
	}

	returns := make([]float64, len(idxs))
	wins := 0
	durSum := 0.0
	for i, idx := range idxs {
		ep := episodes[idx]
		returns[i] = ep.Return
		if ep.IsWin() {
			wins++
		}
		durSum += ep.DurationDays()
	}

	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	s.MeanReturn = mean(returns)
	s.MedianReturn = percentile(sorted, 50)
	s.P10 = percentile(sorted, 10)
	s.P90 = percentile(sorted, 90)
	s.HitRate = float64(wins) / float64(len(idxs))
	s.MeanDuration = durSum / float64(len(idxs))

	return s
}

// Spread returns top-bucket mean return minus bottom-bucket mean return,
// the headline number of the quintile analysis
func (r FactorReport) Spread() float64 {
	if len(r.Buckets) < 2 {
		return 0
	}
	return r.Buckets[len(r.Buckets)-1].MeanReturn - r.Buckets[0].MeanReturn
}

// String returns a formatted multi-line table for CLI output
func (r FactorReport) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (coverage %.1f%%, spread %+.4f)\n", r.Factor, r.Coverage*100, r.Spread())
	fmt.Fprintf(&sb, "  %-7s %-7s %-9s %-9s %-9s %-9s %-8s %-8s\n",
		"bucket", "n", "mean", "median", "p10", "p90", "hit", "days")
	for _, b := range r.Buckets {
		fmt.Fprintf(&sb, "  %-7d %-7d %+-9.4f %+-9.4f %+-9.4f %+-9.4f %-8.2f %-8.1f\n",
			b.Bucket, b.SampleCount, b.MeanReturn, b.MedianReturn, b.P10, b.P90, b.HitRate, b.MeanDuration)
	}
	return sb.String()
}

// mean calculates the arithmetic mean
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// percentile calculates the p-th percentile (p in 0-100)
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	// Linear interpolation method
	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))

	if lower == upper {
		return sorted[lower]
	}

	fraction := rank - float64(lower)
	return sorted[lower] + fraction*(sorted[upper]-sorted[lower])
}
