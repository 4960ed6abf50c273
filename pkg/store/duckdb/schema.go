package duckdb

import "fmt"

// Schema contains table creation statements for all required tables

// CreateEpisodesTable creates the episodes fact table
const CreateEpisodesTable = `
CREATE TABLE IF NOT EXISTS episodes (
    episode_id VARCHAR PRIMARY KEY,
    symbol VARCHAR NOT NULL,
    strategy VARCHAR NOT NULL,
    opened_at TIMESTAMP NOT NULL,
    closed_at TIMESTAMP NOT NULL,
    ret DOUBLE NOT NULL,
    max_adverse DOUBLE,
    data_version INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_episodes_symbol ON episodes(symbol, strategy);
CREATE INDEX IF NOT EXISTS idx_episodes_closed_at ON episodes(closed_at);
`

// CreateExposuresTable creates the factor exposures table (row per factor)
const CreateExposuresTable = `
CREATE TABLE IF NOT EXISTS factor_exposures (
    episode_id VARCHAR NOT NULL,
    factor VARCHAR NOT NULL,
    value DOUBLE NOT NULL,
    PRIMARY KEY (episode_id, factor)
);
`

// CreateScoresTable creates the factor scores table
const CreateScoresTable = `
CREATE TABLE IF NOT EXISTS factor_scores (
    run_id VARCHAR NOT NULL,
    factor VARCHAR NOT NULL,
    side VARCHAR NOT NULL,
    score DOUBLE,
    mean_diff DOUBLE,
    bootstrap_var DOUBLE,
    p_value DOUBLE,
    prevalence DOUBLE,
    coverage DOUBLE,
    bucket_size INTEGER,
    ref_size INTEGER,
    valid BOOLEAN,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (run_id, factor, side)
);
`

// CreateRecommendationsTable creates the selected recommendations table
const CreateRecommendationsTable = `
CREATE TABLE IF NOT EXISTS recommendations (
    run_id VARCHAR NOT NULL,
    factor VARCHAR NOT NULL,
    side VARCHAR NOT NULL,
    score DOUBLE NOT NULL,
    prevalence DOUBLE NOT NULL,
    rank INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (run_id, factor, side)
);

CREATE INDEX IF NOT EXISTS idx_recommendations_created ON recommendations(created_at);
`

// InitializeSchema creates all required tables
func InitializeSchema(c *Client) error {
	schemas := []string{
		CreateEpisodesTable,
		CreateExposuresTable,
		CreateScoresTable,
		CreateRecommendationsTable,
	}

	for _, schema := range schemas {
		if err := c.Exec(schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return nil
}

// DropAllTables drops all tables (use with caution)
func DropAllTables(c *Client) error {
	tables := []string{"recommendations", "factor_scores", "factor_exposures", "episodes"}
	for _, table := range tables {
		if err := c.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
