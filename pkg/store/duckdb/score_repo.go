package duckdb

import (
	"context"
	"fmt"
	"time"

	"github.com/quarzal/quintile/pkg/model"
)

// ScoreRepo handles factor score and recommendation persistence
type ScoreRepo struct {
	client *Client
}

// NewScoreRepo creates a new score repository
func NewScoreRepo(client *Client) *ScoreRepo {
	return &ScoreRepo{client: client}
}

// InsertScores inserts a run's factor scores in a transaction
func (r *ScoreRepo) InsertScores(ctx context.Context, runID string, scores []model.FactorScore) error {
	if len(scores) == 0 {
		return nil
	}

	tx, err := r.client.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO factor_scores (
			run_id, factor, side, score, mean_diff, bootstrap_var, p_value,
			prevalence, coverage, bucket_size, ref_size, valid
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, factor, side) DO UPDATE SET
			score = EXCLUDED.score,
			mean_diff = EXCLUDED.mean_diff,
			bootstrap_var = EXCLUDED.bootstrap_var,
			p_value = EXCLUDED.p_value,
			prevalence = EXCLUDED.prevalence,
			coverage = EXCLUDED.coverage,
			bucket_size = EXCLUDED.bucket_size,
			ref_size = EXCLUDED.ref_size,
			valid = EXCLUDED.valid
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range scores {
		_, err := stmt.Exec(
			runID, s.Factor, string(s.Side), s.Score, s.MeanDiff, s.BootstrapVar,
			s.PValue, s.Prevalence, s.Coverage, s.BucketSize, s.RefSize, s.Valid,
		)
		if err != nil {
			return fmt.Errorf("failed to insert score: %w", err)
		}
	}

	return tx.Commit()
}

// InsertRecommendations inserts selected recommendations in a transaction
func (r *ScoreRepo) InsertRecommendations(ctx context.Context, recs []model.Recommendation) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := r.client.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO recommendations (run_id, factor, side, score, prevalence, rank, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, factor, side) DO UPDATE SET
			score = EXCLUDED.score,
			prevalence = EXCLUDED.prevalence,
			rank = EXCLUDED.rank
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		_, err := stmt.Exec(
			rec.RunID, rec.Factor, string(rec.Side), rec.Score,
			rec.Prevalence, rec.Rank, rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert recommendation: %w", err)
		}
	}

	return tx.Commit()
}

// UsageSince returns the timestamps of past recommendations per
// (factor, side) key, feeding the usage-decay scoring variant
func (r *ScoreRepo) UsageSince(ctx context.Context, since time.Time) (map[string][]time.Time, error) {
	rows, err := r.client.Query(`
		SELECT factor, side, created_at
		FROM recommendations
		WHERE created_at >= ?
		ORDER BY created_at ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	usage := make(map[string][]time.Time)
	for rows.Next() {
		var factor, side string
		var createdAt time.Time
		if err := rows.Scan(&factor, &side, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		key := factor + ":" + side
		usage[key] = append(usage[key], createdAt)
	}

	return usage, nil
}

// GetRecommendations returns the recommendations of a run ordered by rank
func (r *ScoreRepo) GetRecommendations(ctx context.Context, runID string) ([]model.Recommendation, error) {
	rows, err := r.client.Query(`
		SELECT run_id, factor, side, score, prevalence, rank, created_at
		FROM recommendations
		WHERE run_id = ?
		ORDER BY rank ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []model.Recommendation
	for rows.Next() {
		var rec model.Recommendation
		var side string
		if err := rows.Scan(&rec.RunID, &rec.Factor, &side, &rec.Score, &rec.Prevalence, &rec.Rank, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		rec.Side = model.Side(side)
		recs = append(recs, rec)
	}

	return recs, nil
}
