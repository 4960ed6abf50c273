package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/quarzal/quintile/pkg/config"
	"github.com/quarzal/quintile/pkg/episode"
	"github.com/quarzal/quintile/pkg/queue/nats"
	"github.com/quarzal/quintile/pkg/store/duckdb"
	"github.com/quarzal/quintile/pkg/store/milvus"
)

// recentEpisodes sizes the ring of recently closed episodes kept for the
// periodic summary log.
const recentEpisodes = 256

type flags struct {
	ConfigPath string
	NATSUrl    string
	DuckDBPath string
	MilvusAddr string
}

func main() {
	fl := parseFlags()

	cfg, err := config.Load(fl.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if fl.NATSUrl != "" {
		cfg.Queue.URL = fl.NATSUrl
	}
	if fl.DuckDBPath != "" {
		cfg.Store.DuckDBPath = fl.DuckDBPath
	}
	if fl.MilvusAddr != "" {
		cfg.Store.MilvusAddr = fl.MilvusAddr
	}

	log.Println("Starting Writer Worker...")
	log.Printf("NATS: %s, DuckDB: %s, Milvus: %s", cfg.Queue.URL, cfg.Store.DuckDBPath, cfg.Store.MilvusAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	scoreRepo := duckdb.NewScoreRepo(duckClient)

	// Initialize Milvus
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
		log.Fatalf("Failed to create collection: %v", err)
	}
	if err := milvusClient.CreateIndex(ctx, collectionCfg.Name, "embedding"); err != nil {
		log.Fatalf("Failed to create index: %v", err)
	}
	if err := milvusClient.LoadCollection(ctx, collectionCfg.Name); err != nil {
		log.Fatalf("Failed to load collection: %v", err)
	}
	log.Println("Milvus collection ready")

	// Initialize NATS
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
	log.Println("NATS stream ready")

	// Subscribe to episode writes
	episodeConsumer, err := natsClient.Subscribe(ctx, nats.SubjectEpisodeWrite, "episode-writer", func(msg jetstream.Msg) error {
		batch, err := nats.DecodeEpisodeBatch(msg.Data())
		if err != nil {
			log.Printf("Failed to decode episode batch: %v", err)
			return err
		}

		if len(batch.Episodes) == 0 {
			return nil
		}

		if err := episodeRepo.InsertBatch(ctx, batch.Episodes); err != nil {
			log.Printf("Failed to insert episodes: %v", err)
			return err
		}

		log.Printf("Inserted %d episodes", len(batch.Episodes))
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to subscribe to episode writes: %v", err)
	}
	defer episodeConsumer.Stop()

	// Subscribe to fill writes. The builder keeps open lots across messages,
	// so a round trip split over several batches still closes into episodes.
	builder := episode.NewBuilder(cfg.Vector.DataVersion)
	recent := episode.NewRing(recentEpisodes)
	fillConsumer, err := natsClient.Subscribe(ctx, nats.SubjectFillWrite, "fill-writer", func(msg jetstream.Msg) error {
		batch, err := nats.DecodeFillBatch(msg.Data())
		if err != nil {
			log.Printf("Failed to decode fill batch: %v", err)
			return err
		}

		closed := builder.ProcessFills(batch.Fills)
		if len(closed) == 0 {
			return nil
		}

		if err := episodeRepo.InsertBatch(ctx, closed); err != nil {
			log.Printf("Failed to insert episodes from fills: %v", err)
			return err
		}

		for _, ep := range closed {
			recent.Push(ep)
		}
		log.Printf("Assembled %d episodes from %d fills (%s)", len(closed), len(batch.Fills), recentSummary(recent))
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to subscribe to fill writes: %v", err)
	}
	defer fillConsumer.Stop()

	// Subscribe to vector writes
	vectorConsumer, err := natsClient.Subscribe(ctx, nats.SubjectVectorWrite, "vector-writer", func(msg jetstream.Msg) error {
		vw, err := nats.DecodeVectorWrite(msg.Data())
		if err != nil {
			log.Printf("Failed to decode vector write: %v", err)
			return err
		}

		data := &milvus.EpisodeData{
			EpisodeID:      vw.EpisodeID,
			Embedding:      vw.Embedding,
			Symbol:         vw.Symbol,
			Strategy:       vw.Strategy,
			ClosedAt:       vw.ClosedAt,
			RetBucket:      vw.RetBucket,
			DurationBucket: vw.DurationBucket,
			DataVersion:    vw.DataVersion,
		}
		if err := milvusClient.Insert(ctx, collectionCfg.Name, data); err != nil {
			log.Printf("Failed to insert vector %s: %v", vw.EpisodeID, err)
			return err
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to subscribe to vector writes: %v", err)
	}
	defer vectorConsumer.Stop()

	// Subscribe to recommendation writes
	recConsumer, err := natsClient.Subscribe(ctx, nats.SubjectRecommendationWrite, "recommendation-writer", func(msg jetstream.Msg) error {
		rec, err := nats.DecodeRecommendation(msg.Data())
		if err != nil {
			log.Printf("Failed to decode recommendation message: %v", err)
			return err
		}

		if len(rec.Recommendations) == 0 {
			return nil
		}

		if err := scoreRepo.InsertRecommendations(ctx, rec.Recommendations); err != nil {
			log.Printf("Failed to insert recommendations: %v", err)
			return err
		}

		log.Printf("Inserted %d recommendations for run %s", len(rec.Recommendations), rec.RunID)
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to subscribe to recommendation writes: %v", err)
	}
	defer recConsumer.Stop()

	log.Println("Writer Worker started, waiting for messages...")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down Writer Worker...")
}

// recentSummary describes the episodes currently buffered in the ring.
func recentSummary(r *episode.Ring) string {
	eps := r.ToSlice()
	if len(eps) == 0 {
		return "no recent episodes"
	}
	wins := 0
	var sum float64
	for _, ep := range eps {
		if ep.IsWin() {
			wins++
		}
		sum += ep.Return
	}
	n := float64(len(eps))
	return fmt.Sprintf("last %d: win rate %.2f, mean return %+.4f", len(eps), float64(wins)/n, sum/n)
}

func parseFlags() flags {
	fl := flags{}

	flag.StringVar(&fl.ConfigPath, "config", "", "Path to YAML config file")
	flag.StringVar(&fl.NATSUrl, "nats", "", "NATS server URL (overrides config)")
	flag.StringVar(&fl.DuckDBPath, "duckdb", "", "DuckDB file path (overrides config)")
	flag.StringVar(&fl.MilvusAddr, "milvus", "", "Milvus address (overrides config)")

	flag.Parse()
	return fl
}
