package duckdb

import (
	"context"
	"fmt"

	"github.com/quarzal/quintile/pkg/model"
)

// EpisodeRepo handles episode and exposure persistence
type EpisodeRepo struct {
	client *Client
}

// NewEpisodeRepo creates a new episode repository
func NewEpisodeRepo(client *Client) *EpisodeRepo {
	return &EpisodeRepo{client: client}
}

// Insert inserts a single episode with its exposures
func (r *EpisodeRepo) Insert(ctx context.Context, e *model.Episode) error {
	return r.InsertBatch(ctx, []*model.Episode{e})
}

// InsertBatch inserts episodes and their factor exposures in one transaction
func (r *EpisodeRepo) InsertBatch(ctx context.Context, episodes []*model.Episode) error {
	if len(episodes) == 0 {
		return nil
	}

	tx, err := r.client.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	epStmt, err := tx.Prepare(`
		INSERT INTO episodes (episode_id, symbol, strategy, opened_at, closed_at, ret, max_adverse, data_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (episode_id) DO UPDATE SET
			ret = EXCLUDED.ret,
			max_adverse = EXCLUDED.max_adverse,
			data_version = EXCLUDED.data_version
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare episode statement: %w", err)
	}
	defer epStmt.Close()

	exStmt, err := tx.Prepare(`
		INSERT INTO factor_exposures (episode_id, factor, value)
		VALUES (?, ?, ?)
		ON CONFLICT (episode_id, factor) DO UPDATE SET
			value = EXCLUDED.value
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare exposure statement: %w", err)
	}
	defer exStmt.Close()

	for _, e := range episodes {
		_, err := epStmt.Exec(
			e.EpisodeID, e.Symbol, e.Strategy, e.OpenedAt, e.ClosedAt,
			e.Return, e.MaxAdverse, e.DataVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to insert episode: %w", err)
		}

		for factor, value := range e.Exposures {
			if _, err := exStmt.Exec(e.EpisodeID, factor, value); err != nil {
				return fmt.Errorf("failed to insert exposure: %w", err)
			}
		}
	}

	return tx.Commit()
}

// GetByID retrieves an episode with its exposures
func (r *EpisodeRepo) GetByID(ctx context.Context, episodeID string) (*model.Episode, error) {
	query := `
		SELECT episode_id, symbol, strategy, opened_at, closed_at, ret, max_adverse, data_version
		FROM episodes
		WHERE episode_id = ?
	`

	row := r.client.QueryRow(query, episodeID)
	var e model.Episode
	err := row.Scan(
		&e.EpisodeID, &e.Symbol, &e.Strategy, &e.OpenedAt, &e.ClosedAt,
		&e.Return, &e.MaxAdverse, &e.DataVersion,
	)
	if err != nil {
		return nil, err
	}

	e.Exposures = make(map[string]float64)
	if err := r.loadExposures(map[string]*model.Episode{e.EpisodeID: &e}); err != nil {
		return nil, err
	}

	return &e, nil
}

// GetAll retrieves episodes with their exposures, optionally filtered by
// strategy. An empty strategy matches everything.
func (r *EpisodeRepo) GetAll(ctx context.Context, strategy string) ([]*model.Episode, error) {
	query := `
		SELECT episode_id, symbol, strategy, opened_at, closed_at, ret, max_adverse, data_version
		FROM episodes
		WHERE (? = '' OR strategy = ?)
		ORDER BY closed_at ASC
	`

	rows, err := r.client.Query(query, strategy, strategy)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*model.Episode
	byID := make(map[string]*model.Episode)
	for rows.Next() {
		var e model.Episode
		err := rows.Scan(
			&e.EpisodeID, &e.Symbol, &e.Strategy, &e.OpenedAt, &e.ClosedAt,
			&e.Return, &e.MaxAdverse, &e.DataVersion,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		e.Exposures = make(map[string]float64)
		episodes = append(episodes, &e)
		byID[e.EpisodeID] = &e
	}

	if len(episodes) == 0 {
		return nil, nil
	}

	if err := r.loadExposures(byID); err != nil {
		return nil, err
	}

	return episodes, nil
}

// loadExposures fills the Exposures maps for the given episodes
func (r *EpisodeRepo) loadExposures(byID map[string]*model.Episode) error {
	rows, err := r.client.Query(`SELECT episode_id, factor, value FROM factor_exposures`)
	if err != nil {
		return fmt.Errorf("failed to query exposures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, factor string
		var value float64
		if err := rows.Scan(&id, &factor, &value); err != nil {
			return fmt.Errorf("failed to scan exposure: %w", err)
		}
		if e, ok := byID[id]; ok {
			e.Exposures[factor] = value
		}
	}

	return nil
}

// Factors returns the distinct factor names present in the exposure table
func (r *EpisodeRepo) Factors(ctx context.Context) ([]string, error) {
	rows, err := r.client.Query(`SELECT DISTINCT factor FROM factor_exposures ORDER BY factor`)
	if err != nil {
		return nil, fmt.Errorf("failed to query factors: %w", err)
	}
	defer rows.Close()

	var factors []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, fmt.Errorf("failed to scan factor: %w", err)
		}
		factors = append(factors, f)
	}

	return factors, nil
}

// Count returns the total number of episodes
func (r *EpisodeRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	row := r.client.QueryRow(`SELECT COUNT(*) FROM episodes`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count episodes: %w", err)
	}
	return count, nil
}
