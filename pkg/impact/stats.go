package impact

import (
	"math"

	"github.com/quarzal/quintile/pkg/model"
)

// degenerateStd is the threshold below which a population is treated as
// constant. Standardizing against it would divide by (near) zero, so the
// normalized output is defined as all zeros instead.
const degenerateStd = 1e-12

// NormalizeReturns standardizes episode returns against the full population
// (z-score). A degenerate population (near-zero variance) normalizes to a
// constant zero rather than propagating NaN or infinity.
func NormalizeReturns(episodes []*model.Episode) []float64 {
	if len(episodes) == 0 {
		return nil
	}

	returns := make([]float64, len(episodes))
	for i, e := range episodes {
		returns[i] = e.Return
	}

	m, std := meanStd(returns)
	out := make([]float64, len(returns))
	if std < degenerateStd {
		return out
	}
	for i, r := range returns {
		out[i] = (r - m) / std
	}
	return out
}

// meanStd calculates mean and (population) standard deviation
func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	variance := sumSquares / float64(len(values))
	std = math.Sqrt(variance)

	return mean, std
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleVariance returns the unbiased sample variance
func sampleVariance(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := meanOf(values)
	sumSquares := 0.0
	for _, v := range values {
		diff := v - m
		sumSquares += diff * diff
	}
	return sumSquares / float64(n-1)
}

// welchPValue computes the two-sided p-value of the Welch two-sample test
// comparing the means of a and b, using the normal approximation for the
// statistic's distribution. Returns 1 when either sample is too small or the
// pooled variance vanishes.
func welchPValue(a, b []float64) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 1
	}

	meanA := meanOf(a)
	meanB := meanOf(b)
	varA := sampleVariance(a)
	varB := sampleVariance(b)

	se2 := varA/float64(len(a)) + varB/float64(len(b))
	if se2 < degenerateStd {
		return 1
	}

	t := (meanA - meanB) / math.Sqrt(se2)
	// Two-sided tail probability under the standard normal
	return math.Erfc(math.Abs(t) / math.Sqrt2)
}

// gather selects values at the given indices
func gather(values []float64, idxs []int) []float64 {
	out := make([]float64, len(idxs))
	for i, idx := range idxs {
		out[i] = values[idx]
	}
	return out
}
