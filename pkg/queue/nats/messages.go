package nats

import (
	"encoding/json"
	"time"

	"github.com/quarzal/quintile/pkg/model"
)

// Subject constants
const (
	SubjectEpisodeWrite        = "quintile.episodes.write"
	SubjectFillWrite           = "quintile.fills.write"
	SubjectRecommendationWrite = "quintile.recommendations.write"
	SubjectVectorWrite         = "quintile.vectors.write"
)

// AllSubjects returns every subject bound to the work-queue stream. Stream
// creation is CreateOrUpdate, so every binary must declare the same set or
// the last one to start would drop the others' subjects.
func AllSubjects() []string {
	return []string{
		SubjectEpisodeWrite,
		SubjectFillWrite,
		SubjectRecommendationWrite,
		SubjectVectorWrite,
	}
}

// EpisodeBatchMsg represents a batch episode write request
type EpisodeBatchMsg struct {
	Episodes []*model.Episode `json:"episodes"`
}

// FillBatchMsg carries a chronological batch of execution fills to be
// assembled into episodes by the writer
type FillBatchMsg struct {
	Fills []model.Fill `json:"fills"`
}

// RecommendationMsg carries the recommendations of one scoring run
type RecommendationMsg struct {
	RunID           string                 `json:"run_id"`
	CreatedAt       time.Time              `json:"created_at"`
	Recommendations []model.Recommendation `json:"recommendations"`
}

// VectorWriteMsg represents a Milvus vector write request
type VectorWriteMsg struct {
	EpisodeID      string    `json:"episode_id"`
	Embedding      []float32 `json:"embedding"`
	Symbol         string    `json:"symbol"`
	Strategy       string    `json:"strategy"`
	ClosedAt       time.Time `json:"closed_at"`
	RetBucket      int32     `json:"ret_bucket"`
	DurationBucket int32     `json:"duration_bucket"`
	DataVersion    int32     `json:"data_version"`
}

// Encode serializes a message to JSON bytes
func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeEpisodeBatch deserializes an EpisodeBatchMsg from JSON bytes
func DecodeEpisodeBatch(data []byte) (*EpisodeBatchMsg, error) {
	var msg EpisodeBatchMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeFillBatch deserializes a FillBatchMsg from JSON bytes
func DecodeFillBatch(data []byte) (*FillBatchMsg, error) {
	var msg FillBatchMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeRecommendation deserializes a RecommendationMsg from JSON bytes
func DecodeRecommendation(data []byte) (*RecommendationMsg, error) {
	var msg RecommendationMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeVectorWrite deserializes a VectorWriteMsg from JSON bytes
func DecodeVectorWrite(data []byte) (*VectorWriteMsg, error) {
	var msg VectorWriteMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
