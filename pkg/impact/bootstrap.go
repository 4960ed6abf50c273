package impact

import (
	"hash/fnv"
	"math/rand"
)

// bootstrapVariance estimates the sampling variance of the mean difference
// between bucket and ref by resampling both populations with replacement n
// times and taking the variance of the resampled mean differences.
func bootstrapVariance(rng *rand.Rand, bucket, ref []float64, n int) float64 {
	if len(bucket) == 0 || len(ref) == 0 || n <= 1 {
		return 0
	}

	diffs := make([]float64, n)
	for i := 0; i < n; i++ {
		diffs[i] = resampleMean(rng, bucket) - resampleMean(rng, ref)
	}
	return sampleVariance(diffs)
}

// resampleMean draws len(values) samples with replacement and returns their mean
func resampleMean(rng *rand.Rand, values []float64) float64 {
	sum := 0.0
	for i := 0; i < len(values); i++ {
		sum += values[rng.Intn(len(values))]
	}
	return sum / float64(len(values))
}

// rngFor derives a per-key RNG from the engine seed so that scoring is
// reproducible regardless of the order factors are processed in.
func rngFor(seed int64, key string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(key))
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64())))
}
