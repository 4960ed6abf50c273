package model

// EpisodeVector is a fixed-length float32 vector describing an episode for
// similarity search, built from standardized attributes and factor exposures
type EpisodeVector []float32

// VectorDim constants for common embedding dimensions
const (
	VectorDim32 = 32
	VectorDim64 = 64
)

// NewEpisodeVector creates a new EpisodeVector with the specified dimension
func NewEpisodeVector(dim int) EpisodeVector {
	return make(EpisodeVector, dim)
}

// Dim returns the dimension of the vector
func (v EpisodeVector) Dim() int {
	return len(v)
}

// Copy creates a deep copy of the vector
func (v EpisodeVector) Copy() EpisodeVector {
	result := make(EpisodeVector, len(v))
	copy(result, v)
	return result
}

// ToFloat64 converts the vector to a float64 slice
func (v EpisodeVector) ToFloat64() []float64 {
	result := make([]float64, len(v))
	for i, x := range v {
		result[i] = float64(x)
	}
	return result
}

// FromFloat64 creates an EpisodeVector from a float64 slice
func FromFloat64(data []float64) EpisodeVector {
	result := make(EpisodeVector, len(data))
	for i, x := range data {
		result[i] = float32(x)
	}
	return result
}
