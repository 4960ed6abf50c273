package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the toolkit. Binaries load it from a YAML
// file and let flags override individual fields.
type Config struct {
	Scoring   ScoringConfig   `yaml:"scoring"`
	Selection SelectionConfig `yaml:"selection"`
	Store     StoreConfig     `yaml:"store"`
	Queue     QueueConfig     `yaml:"queue"`
	Vector    VectorConfig    `yaml:"vector"`
}

// ScoringConfig mirrors the impact engine configuration
type ScoringConfig struct {
	Q                   int     `yaml:"q"`
	Resamples           int     `yaml:"resamples"`
	PenaltyLambda       float64 `yaml:"penalty_lambda"`
	Reference           string  `yaml:"reference"` // "others" or "middle"
	UseSignificance     bool    `yaml:"use_significance"`
	MinCoverage         float64 `yaml:"min_coverage"`
	RecencyHalfLifeDays float64 `yaml:"recency_half_life_days"`
	RecencyGateDays     float64 `yaml:"recency_gate_days"`
	UsageLambda         float64 `yaml:"usage_lambda"`
	Seed                int64   `yaml:"seed"`
	Parallelism         int     `yaml:"parallelism"`
}

// SelectionConfig mirrors the selector constraints
type SelectionConfig struct {
	MaxSelections int     `yaml:"max_selections"`
	PrevalenceCap float64 `yaml:"prevalence_cap"`
}

// StoreConfig holds storage endpoints
type StoreConfig struct {
	DuckDBPath string `yaml:"duckdb_path"`
	MilvusAddr string `yaml:"milvus_addr"`
}

// QueueConfig holds NATS settings
type QueueConfig struct {
	URL        string `yaml:"url"`
	StreamName string `yaml:"stream_name"`
}

// VectorConfig holds embedding settings
type VectorConfig struct {
	Dimension   int `yaml:"dimension"`
	DataVersion int `yaml:"data_version"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Scoring: ScoringConfig{
			Q:               5,
			Resamples:       800,
			PenaltyLambda:   50,
			Reference:       "others",
			UseSignificance: true,
			MinCoverage:     0.5,
			Seed:            1,
			Parallelism:     4,
		},
		Selection: SelectionConfig{
			MaxSelections: 3,
			PrevalenceCap: 0.35,
		},
		Store: StoreConfig{
			DuckDBPath: "quintile.duckdb",
			MilvusAddr: "localhost:19530",
		},
		Queue: QueueConfig{
			URL:        "nats://localhost:4222",
			StreamName: "quintile",
		},
		Vector: VectorConfig{
			Dimension:   32,
			DataVersion: 1,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Scoring.Q < 3 {
		return fmt.Errorf("scoring.q must be at least 3, got %d", c.Scoring.Q)
	}
	if c.Scoring.Resamples < 1 {
		return fmt.Errorf("scoring.resamples must be positive, got %d", c.Scoring.Resamples)
	}
	if c.Scoring.Reference != "others" && c.Scoring.Reference != "middle" {
		return fmt.Errorf("scoring.reference must be \"others\" or \"middle\", got %q", c.Scoring.Reference)
	}
	if c.Selection.MaxSelections < 0 {
		return fmt.Errorf("selection.max_selections cannot be negative")
	}
	if c.Vector.Dimension != 32 && c.Vector.Dimension != 64 {
		return fmt.Errorf("vector.dimension must be 32 or 64, got %d", c.Vector.Dimension)
	}
	return nil
}
