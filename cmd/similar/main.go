package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/quarzal/quintile/pkg/config"
	"github.com/quarzal/quintile/pkg/feature"
	"github.com/quarzal/quintile/pkg/model"
	"github.com/quarzal/quintile/pkg/rerank"
	"github.com/quarzal/quintile/pkg/store/duckdb"
	"github.com/quarzal/quintile/pkg/store/milvus"
)

type flags struct {
	ConfigPath string
	DuckDBPath string
	MilvusAddr string
	EpisodeID  string
	Strategy   string
	TopK       int
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

	ctx := context.Background()

	// Initialize DuckDB
	log.Println("Connecting to DuckDB...")
	duckClient, err := duckdb.NewClient(cfg.Store.DuckDBPath)
	if err != nil {
		log.Fatalf("Failed to connect to DuckDB: %v", err)
	}
	defer duckClient.Close()

	episodeRepo := duckdb.NewEpisodeRepo(duckClient)

	// The extractor must be fitted on the same population the index was
	// built from, so the query vector is standardized identically.
	episodes, err := episodeRepo.GetAll(ctx, "")
	if err != nil {
		log.Fatalf("Failed to load episodes: %v", err)
	}
	if len(episodes) == 0 {
		log.Fatal("No episodes found, run backfill first")
	}

	query := pickQuery(episodes, fl.EpisodeID)
	if query == nil {
		log.Fatalf("Episode %s not found", fl.EpisodeID)
	}
	log.Printf("Query episode: %s (%s %s, closed %s, return %+.4f)",
		query.EpisodeID, query.Symbol, query.Strategy,
		query.ClosedAt.Format("2006-01-02"), query.Return)

	factors, err := episodeRepo.Factors(ctx)
	if err != nil {
		log.Fatalf("Failed to load factors: %v", err)
	}

	extractor := feature.NewExtractor(cfg.Vector.DataVersion, cfg.Vector.Dimension, factors)
	if err := extractor.Fit(episodes); err != nil {
		log.Fatalf("Failed to fit extractor: %v", err)
	}
	embedding, err := extractor.Vector(query)
	if err != nil {
		log.Fatalf("Failed to build query vector: %v", err)
	}

	// Initialize Milvus
	log.Println("Connecting to Milvus...")
	milvusClient, err := milvus.NewClient(ctx, milvus.Config{Address: cfg.Store.MilvusAddr})
	if err != nil {
		log.Fatalf("Failed to connect to Milvus: %v", err)
	}
	defer milvusClient.Close()

	if err := milvusClient.LoadCollection(ctx, milvus.DefaultCollectionName); err != nil {
		log.Fatalf("Failed to load collection: %v", err)
	}

	// Search. Fetch a few extra so dropping the query itself still leaves TopK.
	filter := ""
	if fl.Strategy != "" {
		filter = fmt.Sprintf("strategy == \"%s\"", fl.Strategy)
	}
	results, err := milvusClient.Search(ctx, milvus.DefaultCollectionName, embedding, filter, fl.TopK+1)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	// Rerank by time decay and print
	reranker := rerank.NewReranker(rerank.DefaultTimeDecayConfig())
	ranked := reranker.Rerank(results, time.Now())

	fmt.Println("\n=== Similar Episodes ===")
	fmt.Printf("%-5s %-32s %-12s %-10s %-12s %-10s %-10s\n",
		"Rank", "EpisodeID", "Symbol", "Strategy", "Closed", "Sim", "Final")
	fmt.Println("---------------------------------------------------------------------------------------------")

	shown := 0
	for _, r := range ranked {
		if r.EpisodeID == query.EpisodeID {
			continue
		}
		shown++
		if shown > fl.TopK {
			break
		}
		fmt.Printf("%-5d %-32s %-12s %-10s %-12s %-10.4f %-10.4f\n",
			shown, r.EpisodeID, r.Symbol, r.Strategy,
			r.ClosedAt.Format("2006-01-02"), r.OriginalScore, r.FinalScore)
	}
}

// pickQuery returns the episode with the given ID, or the most recently
// closed one when no ID was given
func pickQuery(episodes []*model.Episode, id string) *model.Episode {
	if id == "" {
		latest := episodes[0]
		for _, e := range episodes[1:] {
			if e.ClosedAt.After(latest.ClosedAt) {
				latest = e
			}
		}
		return latest
	}
	for _, e := range episodes {
		if e.EpisodeID == id {
			return e
		}
	}
	return nil
}

func parseFlags() flags {
	fl := flags{}

	flag.StringVar(&fl.ConfigPath, "config", "", "Path to YAML config file")
	flag.StringVar(&fl.DuckDBPath, "duckdb", "", "DuckDB file path (overrides config)")
	flag.StringVar(&fl.MilvusAddr, "milvus", "", "Milvus server address (overrides config)")
	flag.StringVar(&fl.EpisodeID, "episode", "", "Query episode ID (defaults to latest)")
	flag.StringVar(&fl.Strategy, "strategy", "", "Filter results to one strategy")
	flag.IntVar(&fl.TopK, "topk", 10, "Top K results")

	flag.Parse()
	return fl
}
