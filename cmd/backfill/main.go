package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/quarzal/quintile/pkg/config"
	"github.com/quarzal/quintile/pkg/data"
	"github.com/quarzal/quintile/pkg/feature"
	"github.com/quarzal/quintile/pkg/model"
	"github.com/quarzal/quintile/pkg/queue/nats"
	"github.com/quarzal/quintile/pkg/store/duckdb"
	"github.com/quarzal/quintile/pkg/store/milvus"
)

const defaultBatchSize = 500

type flags struct {
	ConfigPath string
	CSVPath    string
	DuckDBPath string
	MilvusAddr string
	NATSUrl    string
	BatchSize  int
	Queue      bool
}

func main() {
	fl := parseFlags()

	cfg, err := config.Load(fl.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if fl.DuckDBPath != "" {
		cfg.Store.DuckDBPath = fl.DuckDBPath
	}
	if fl.MilvusAddr != "" {
		cfg.Store.MilvusAddr = fl.MilvusAddr
	}
	if fl.NATSUrl != "" {
		cfg.Queue.URL = fl.NATSUrl
	}

	log.Printf("Starting episode backfill from %s", fl.CSVPath)

	ctx := context.Background()

	// Initialize DuckDB
	log.Println("Connecting to DuckDB...")
	duckClient, err := duckdb.NewClient(cfg.Store.DuckDBPath)
	if err != nil {
		log.Fatalf("Failed to connect to DuckDB: %v", err)
	}
	defer duckClient.Close()

	if err := duckdb.InitializeSchema(duckClient); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	log.Println("DuckDB schema initialized")

	episodeRepo := duckdb.NewEpisodeRepo(duckClient)

	// Load episodes
	source := data.NewCSVSource(fl.CSVPath, cfg.Vector.DataVersion)
	episodes, err := source.FetchEpisodes(ctx)
	if err != nil {
		log.Fatalf("Failed to load episodes: %v", err)
	}
	log.Printf("Loaded %d episodes", len(episodes))
	if len(episodes) == 0 {
		log.Fatal("No episodes to backfill")
	}

	// Store episodes in DuckDB
	log.Println("Storing episodes in DuckDB...")
	importCfg := data.DefaultImportConfig()
	importCfg.BatchSize = fl.BatchSize
	err = data.Import(ctx, episodes, importCfg, episodeRepo.InsertBatch, func(p data.ImportProgress) {
		log.Printf("Stored %d/%d episodes", p.Processed, p.Total)
	})
	if err != nil {
		log.Fatalf("Failed to store episodes: %v", err)
	}

	// Build vectors
	factors := collectFactors(episodes)
	log.Printf("Fitting extractor on %d episodes, %d factors", len(episodes), len(factors))
	extractor := feature.NewExtractor(cfg.Vector.DataVersion, cfg.Vector.Dimension, factors)
	if err := extractor.Fit(episodes); err != nil {
		log.Fatalf("Failed to fit extractor: %v", err)
	}

	var milvusData []*milvus.EpisodeData
	for _, ep := range episodes {
		vec, err := extractor.Vector(ep)
		if err != nil {
			log.Printf("Warning: failed to build vector for episode %s: %v", ep.EpisodeID, err)
			continue
		}

		milvusData = append(milvusData, &milvus.EpisodeData{
			EpisodeID:      ep.EpisodeID,
			Embedding:      vec,
			Symbol:         ep.Symbol,
			Strategy:       ep.Strategy,
			ClosedAt:       ep.ClosedAt,
			RetBucket:      int32(model.ClassifyReturnBucket(ep.Return)),
			DurationBucket: int32(model.ClassifyDurationBucket(ep.DurationDays())),
			DataVersion:    int32(ep.DataVersion),
		})
	}

	if fl.Queue {
		publishVectors(ctx, &cfg, milvusData)
	} else {
		storeVectors(ctx, &cfg, milvusData, fl.BatchSize)
	}

	log.Println("Backfill completed successfully!")
	log.Printf("Summary: %d episodes → %d vectors", len(episodes), len(milvusData))
}

// publishVectors hands the vectors to the writer worker over JetStream,
// which owns the Milvus insert path.
func publishVectors(ctx context.Context, cfg *config.Config, batch []*milvus.EpisodeData) {
	log.Println("Connecting to NATS...")
	natsClient, err := nats.NewClient(nats.Config{
		URL:        cfg.Queue.URL,
		StreamName: cfg.Queue.StreamName,
	})
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer natsClient.Close()

	if err := natsClient.CreateStream(ctx, nats.AllSubjects()); err != nil {
		log.Fatalf("Failed to create stream: %v", err)
	}

	log.Printf("Publishing %d vector writes...", len(batch))
	for _, d := range batch {
		payload, err := nats.Encode(nats.VectorWriteMsg{
			EpisodeID:      d.EpisodeID,
			Embedding:      d.Embedding,
			Symbol:         d.Symbol,
			Strategy:       d.Strategy,
			ClosedAt:       d.ClosedAt,
			RetBucket:      d.RetBucket,
			DurationBucket: d.DurationBucket,
			DataVersion:    d.DataVersion,
		})
		if err != nil {
			log.Fatalf("Failed to encode vector write for %s: %v", d.EpisodeID, err)
		}
		if err := natsClient.Publish(ctx, nats.SubjectVectorWrite, payload); err != nil {
			log.Fatalf("Failed to publish vector write for %s: %v", d.EpisodeID, err)
		}
	}
}

// storeVectors writes the vectors into Milvus directly.
func storeVectors(ctx context.Context, cfg *config.Config, batch []*milvus.EpisodeData, batchSize int) {
	log.Println("Connecting to Milvus...")
	milvusClient, err := milvus.NewClient(ctx, milvus.Config{Address: cfg.Store.MilvusAddr})
	if err != nil {
		log.Fatalf("Failed to connect to Milvus: %v", err)
	}
	defer milvusClient.Close()

	collectionCfg := milvus.CollectionConfig{
		Name:      milvus.DefaultCollectionName,
		Dimension: cfg.Vector.Dimension,
		Shards:    2,
	}
	if err := milvusClient.CreateCollection(ctx, collectionCfg); err != nil {
		log.Fatalf("Failed to create Milvus collection: %v", err)
	}
	log.Println("Milvus collection ready")

	log.Println("Storing vectors in Milvus...")
	for i := 0; i < len(batch); i += batchSize {
		end := i + batchSize
		if end > len(batch) {
			end = len(batch)
		}
		if err := milvusClient.InsertBatch(ctx, collectionCfg.Name, batch[i:end]); err != nil {
			log.Fatalf("Failed to insert vectors: %v", err)
		}
	}

	if err := milvusClient.Flush(ctx, collectionCfg.Name); err != nil {
		log.Printf("Warning: failed to flush Milvus: %v", err)
	}

	log.Println("Creating Milvus index...")
	if err := milvusClient.CreateIndex(ctx, collectionCfg.Name, "embedding"); err != nil {
		log.Printf("Warning: failed to create index: %v", err)
	}
	if err := milvusClient.LoadCollection(ctx, collectionCfg.Name); err != nil {
		log.Printf("Warning: failed to load collection: %v", err)
	}
}

// collectFactors returns the union of factor names across the episodes
func collectFactors(episodes []*model.Episode) []string {
	seen := make(map[string]bool)
	var factors []string
	for _, ep := range episodes {
		for f := range ep.Exposures {
			if !seen[f] {
				seen[f] = true
				factors = append(factors, f)
			}
		}
	}
	return factors
}

// normalizeBatchSize falls back to the default for non-positive sizes.
func normalizeBatchSize(n int) int {
	if n <= 0 {
		return defaultBatchSize
	}
	return n
}

func parseFlags() flags {
	fl := flags{}

	flag.StringVar(&fl.ConfigPath, "config", "", "Path to YAML config file")
	flag.StringVar(&fl.CSVPath, "csv", "", "Path to CSV file with episode data")
	flag.StringVar(&fl.DuckDBPath, "duckdb", "", "DuckDB file path (overrides config)")
	flag.StringVar(&fl.MilvusAddr, "milvus", "", "Milvus server address (overrides config)")
	flag.StringVar(&fl.NATSUrl, "nats", "", "NATS server URL (overrides config)")
	flag.IntVar(&fl.BatchSize, "batch", defaultBatchSize, "Batch size for inserts")
	flag.BoolVar(&fl.Queue, "queue", false, "Publish vectors to the writer worker instead of writing Milvus directly")

	flag.Parse()

	if fl.CSVPath == "" {
		fmt.Println("Usage: backfill -csv <path> [options]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	fl.BatchSize = normalizeBatchSize(fl.BatchSize)

	return fl
}
