package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/quarzal/quintile/pkg/config"
	"github.com/quarzal/quintile/pkg/impact"
	"github.com/quarzal/quintile/pkg/model"
	"github.com/quarzal/quintile/pkg/queue/nats"
	"github.com/quarzal/quintile/pkg/report"
	"github.com/quarzal/quintile/pkg/selector"
	"github.com/quarzal/quintile/pkg/store/duckdb"
)

type flags struct {
	ConfigPath string
	DuckDBPath string
	RunID      string
	Strategy   string
	Publish    bool
	ShowReport bool
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

	now := time.Now().UTC()
	runID := fl.RunID
	if runID == "" {
		runID = now.Format("20060102-150405")
	}

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

	episodeRepo := duckdb.NewEpisodeRepo(duckClient)
	scoreRepo := duckdb.NewScoreRepo(duckClient)

	// Load population
	episodes, err := episodeRepo.GetAll(ctx, fl.Strategy)
	if err != nil {
		log.Fatalf("Failed to load episodes: %v", err)
	}
	if len(episodes) == 0 {
		log.Fatal("No episodes found, run backfill first")
	}

	factors, err := episodeRepo.Factors(ctx)
	if err != nil {
		log.Fatalf("Failed to load factors: %v", err)
	}
	log.Printf("Scoring %d factors over %d episodes (run %s)", len(factors), len(episodes), runID)

	// Usage history for the decay-weighted variant
	var usage impact.UsageHistory
	if cfg.Scoring.UsageLambda > 0 {
		usage, err = scoreRepo.UsageSince(ctx, now.AddDate(0, -3, 0))
		if err != nil {
			log.Fatalf("Failed to load usage history: %v", err)
		}
	}

	// Score
	engine := impact.NewEngine(scoringConfig(cfg.Scoring))
	scores, err := engine.Score(ctx, episodes, factors, usage, now)
	if err != nil {
		log.Fatalf("Scoring failed: %v", err)
	}

	fmt.Println("\n=== Factor Impact Scores ===")
	for _, s := range scores {
		fmt.Println(s.String())
	}

	if fl.ShowReport {
		fmt.Println("\n=== Quintile Performance ===")
		for _, r := range report.Build(episodes, factors, cfg.Scoring.Q) {
			fmt.Println(r.String())
		}
	}

	// Select
	result := selector.Select(scores, selector.Constraints{
		MaxSelections: cfg.Selection.MaxSelections,
		PrevalenceCap: cfg.Selection.PrevalenceCap,
	})

	fmt.Println("\n=== Recommended Switches ===")
	if len(result.Selected) == 0 {
		fmt.Println("(no feasible selection)")
	}

	recs := make([]model.Recommendation, len(result.Selected))
	for i, s := range result.Selected {
		recs[i] = model.Recommendation{
			RunID:      runID,
			Factor:     s.Factor,
			Side:       s.Side,
			Score:      s.Score,
			Prevalence: s.Prevalence,
			Rank:       i + 1,
			CreatedAt:  now,
		}
		fmt.Printf("%d. %-24s %-6s score=%+.5f prevalence=%.3f\n",
			i+1, s.Factor, s.Side, s.Score, s.Prevalence)
	}
	fmt.Printf("Total score %.5f, aggregate prevalence %.3f\n", result.TotalScore, result.Prevalence)

	// Persist
	if err := scoreRepo.InsertScores(ctx, runID, scores); err != nil {
		log.Fatalf("Failed to store scores: %v", err)
	}
	if err := scoreRepo.InsertRecommendations(ctx, recs); err != nil {
		log.Fatalf("Failed to store recommendations: %v", err)
	}
	log.Printf("Stored %d scores and %d recommendations", len(scores), len(recs))

	// Publish
	if fl.Publish {
		if err := publish(ctx, cfg, runID, now, recs); err != nil {
			log.Fatalf("Failed to publish recommendations: %v", err)
		}
		log.Println("Recommendations published")
	}
}

// scoringConfig maps the YAML config onto the engine configuration
func scoringConfig(sc config.ScoringConfig) impact.Config {
	ref := impact.RefOthers
	if sc.Reference == "middle" {
		ref = impact.RefMiddle
	}
	return impact.Config{
		Q:                   sc.Q,
		Resamples:           sc.Resamples,
		PenaltyLambda:       sc.PenaltyLambda,
		Reference:           ref,
		UseSignificance:     sc.UseSignificance,
		MinCoverage:         sc.MinCoverage,
		RecencyHalfLifeDays: sc.RecencyHalfLifeDays,
		RecencyGateDays:     sc.RecencyGateDays,
		UsageLambda:         sc.UsageLambda,
		Seed:                sc.Seed,
		Parallelism:         sc.Parallelism,
	}
}

func publish(ctx context.Context, cfg config.Config, runID string, now time.Time, recs []model.Recommendation) error {
	natsClient, err := nats.NewClient(nats.Config{
		URL:        cfg.Queue.URL,
		StreamName: cfg.Queue.StreamName,
	})
	if err != nil {
		return err
	}
	defer natsClient.Close()

	if err := natsClient.CreateStream(ctx, nats.AllSubjects()); err != nil {
		return err
	}

	payload, err := nats.Encode(nats.RecommendationMsg{
		RunID:           runID,
		CreatedAt:       now,
		Recommendations: recs,
	})
	if err != nil {
		return err
	}

	return natsClient.Publish(ctx, nats.SubjectRecommendationWrite, payload)
}

func parseFlags() flags {
	fl := flags{}

	flag.StringVar(&fl.ConfigPath, "config", "", "Path to YAML config file")
	flag.StringVar(&fl.DuckDBPath, "duckdb", "", "DuckDB file path (overrides config)")
	flag.StringVar(&fl.RunID, "run", "", "Run identifier (defaults to timestamp)")
	flag.StringVar(&fl.Strategy, "strategy", "", "Restrict scoring to one strategy")
	flag.BoolVar(&fl.Publish, "publish", false, "Publish recommendations to NATS")
	flag.BoolVar(&fl.ShowReport, "report", true, "Print the quintile performance report")

	flag.Parse()
	return fl
}
