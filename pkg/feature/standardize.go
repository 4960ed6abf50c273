package feature

import "math"

// ColumnStats holds the population mean and standard deviation used to
// standardize one column of the episode matrix
type ColumnStats struct {
	Mean float64
	Std  float64
}

// degenerateStd marks a column as constant. Standardizing a constant column
// would divide by (near) zero, so its standardized output is all zeros.
const degenerateStd = 1e-12

// FitColumn computes the statistics for one column
func FitColumn(values []float64) ColumnStats {
	mean, std := meanStd(values)
	return ColumnStats{Mean: mean, Std: std}
}

// Standardize z-scores v against the column statistics, clips at ±clipStd
// and scales the result to [-1, 1]. Degenerate columns map every value to 0.
func (cs ColumnStats) Standardize(v, clipStd float64) float64 {
	if cs.Std < degenerateStd {
		return 0
	}
	z := (v - cs.Mean) / cs.Std
	if z > clipStd {
		z = clipStd
	}
	if z < -clipStd {
		z = -clipStd
	}
	return z / clipStd
}

// StandardizeColumn applies Standardize to a whole column
func StandardizeColumn(values []float64, cs ColumnStats, clipStd float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = cs.Standardize(v, clipStd)
	}
	return out
}

// meanStd calculates mean and standard deviation
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
