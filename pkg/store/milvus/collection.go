package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// DefaultCollectionName is the collection holding episode embeddings
const DefaultCollectionName = "episodes"

// CollectionConfig holds settings for creating the episode collection
type CollectionConfig struct {
	Name      string
	Dimension int // embedding dimension (32 or 64)
	Shards    int
}

// DefaultCollectionConfig returns default collection settings
func DefaultCollectionConfig() CollectionConfig {
	return CollectionConfig{
		Name:      DefaultCollectionName,
		Dimension: 32,
		Shards:    2,
	}
}

// CreateCollection creates the episode collection unless it already exists.
// Scalar fields beside the embedding carry the metadata used in filter
// expressions and rerank.
func (c *Client) CreateCollection(ctx context.Context, cfg CollectionConfig) error {
	exists, err := c.HasCollection(ctx, cfg.Name)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	schema := entity.NewSchema().
		WithName(cfg.Name).
		WithDescription("trading episode embeddings for similarity search").
		WithField(entity.NewField().
			WithName("episode_id").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(cfg.Dimension))).
		WithField(entity.NewField().
			WithName("symbol").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(32)).
		WithField(entity.NewField().
			WithName("strategy").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(32)).
		WithField(entity.NewField().
			WithName("closed_at").
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName("ret_bucket").
			WithDataType(entity.FieldTypeInt32)).
		WithField(entity.NewField().
			WithName("duration_bucket").
			WithDataType(entity.FieldTypeInt32)).
		WithField(entity.NewField().
			WithName("data_version").
			WithDataType(entity.FieldTypeInt32))

	if err := c.conn.CreateCollection(ctx, schema, int32(cfg.Shards)); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", cfg.Name, err)
	}
	return nil
}

// EpisodeData is one episode row destined for the vector index
type EpisodeData struct {
	EpisodeID      string
	Embedding      []float32
	Symbol         string
	Strategy       string
	ClosedAt       time.Time
	RetBucket      int32
	DurationBucket int32
	DataVersion    int32
}

// Insert writes a single episode embedding
func (c *Client) Insert(ctx context.Context, collection string, data *EpisodeData) error {
	return c.InsertBatch(ctx, collection, []*EpisodeData{data})
}

// InsertBatch writes a batch of episode embeddings in one call
func (c *Client) InsertBatch(ctx context.Context, collection string, batch []*EpisodeData) error {
	if len(batch) == 0 {
		return nil
	}

	n := len(batch)
	cols := struct {
		ids        []string
		embeddings [][]float32
		symbols    []string
		strategies []string
		closedAts  []int64
		retBs      []int32
		durBs      []int32
		versions   []int32
	}{
		ids:        make([]string, n),
		embeddings: make([][]float32, n),
		symbols:    make([]string, n),
		strategies: make([]string, n),
		closedAts:  make([]int64, n),
		retBs:      make([]int32, n),
		durBs:      make([]int32, n),
		versions:   make([]int32, n),
	}
	for i, d := range batch {
		cols.ids[i] = d.EpisodeID
		cols.embeddings[i] = d.Embedding
		cols.symbols[i] = d.Symbol
		cols.strategies[i] = d.Strategy
		cols.closedAts[i] = d.ClosedAt.Unix()
		cols.retBs[i] = d.RetBucket
		cols.durBs[i] = d.DurationBucket
		cols.versions[i] = d.DataVersion
	}

	_, err := c.conn.Insert(ctx, collection, "",
		entity.NewColumnVarChar("episode_id", cols.ids),
		entity.NewColumnFloatVector("embedding", len(cols.embeddings[0]), cols.embeddings),
		entity.NewColumnVarChar("symbol", cols.symbols),
		entity.NewColumnVarChar("strategy", cols.strategies),
		entity.NewColumnInt64("closed_at", cols.closedAts),
		entity.NewColumnInt32("ret_bucket", cols.retBs),
		entity.NewColumnInt32("duration_bucket", cols.durBs),
		entity.NewColumnInt32("data_version", cols.versions),
	)
	if err != nil {
		return fmt.Errorf("failed to insert %d episodes: %w", n, err)
	}
	return nil
}

// SearchResult is one similarity hit with its metadata
type SearchResult struct {
	EpisodeID      string
	Score          float32
	Symbol         string
	Strategy       string
	ClosedAt       time.Time
	RetBucket      int32
	DurationBucket int32
	DataVersion    int32
}

// searchNprobe is the number of IVF clusters probed per query
const searchNprobe = 16

// Search runs a topK cosine search for one query embedding. filter is a
// Milvus boolean expression over the scalar fields, empty for none.
func (c *Client) Search(ctx context.Context, collection string, embedding []float32, filter string, topK int) ([]SearchResult, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(searchNprobe)
	if err != nil {
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	resultSets, err := c.conn.Search(ctx, collection, nil, filter,
		[]string{"episode_id", "symbol", "strategy", "closed_at", "ret_bucket", "duration_bucket", "data_version"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding", entity.COSINE, topK, sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}
	if len(resultSets) == 0 {
		return nil, nil
	}

	set := resultSets[0]
	hits := make([]SearchResult, 0, set.ResultCount)
	for i := 0; i < set.ResultCount; i++ {
		hit := SearchResult{Score: set.Scores[i]}
		for _, field := range set.Fields {
			switch field.Name() {
			case "episode_id":
				hit.EpisodeID = varCharAt(field, i)
			case "symbol":
				hit.Symbol = varCharAt(field, i)
			case "strategy":
				hit.Strategy = varCharAt(field, i)
			case "closed_at":
				hit.ClosedAt = time.Unix(int64At(field, i), 0)
			case "ret_bucket":
				hit.RetBucket = int32At(field, i)
			case "duration_bucket":
				hit.DurationBucket = int32At(field, i)
			case "data_version":
				hit.DataVersion = int32At(field, i)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Flush persists buffered inserts
func (c *Client) Flush(ctx context.Context, collection string) error {
	return c.conn.Flush(ctx, collection, false)
}

func varCharAt(col entity.Column, i int) string {
	if c, ok := col.(*entity.ColumnVarChar); ok {
		v, _ := c.ValueByIdx(i)
		return v
	}
	return ""
}

func int64At(col entity.Column, i int) int64 {
	if c, ok := col.(*entity.ColumnInt64); ok {
		v, _ := c.ValueByIdx(i)
		return v
	}
	return 0
}

func int32At(col entity.Column, i int) int32 {
	if c, ok := col.(*entity.ColumnInt32); ok {
		v, _ := c.ValueByIdx(i)
		return v
	}
	return 0
}
