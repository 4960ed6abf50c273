package data

import (
	"context"
	"fmt"
	"time"

	"github.com/quarzal/quintile/pkg/model"
)

// ImportConfig holds configuration for batch import operations
type ImportConfig struct {
	BatchSize     int           // Episodes per sink call
	RetryAttempts int           // Number of retry attempts for failed batches
	RetryDelay    time.Duration // Delay between retry attempts
}

// DefaultImportConfig returns an ImportConfig with sensible defaults
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		BatchSize:     500,
		RetryAttempts: 3,
		RetryDelay:    time.Second * 2,
	}
}

// ImportProgress tracks the progress of an import operation
type ImportProgress struct {
	Total     int
	Processed int
	Errors    []error
}

// ProgressCallback is called after each batch to report progress
type ProgressCallback func(progress ImportProgress)

// BatchSink receives episode batches, typically a store repo or a queue publisher
type BatchSink func(ctx context.Context, episodes []*model.Episode) error

// Import pushes episodes into the sink in batches with bounded retries.
// A batch that still fails after all retries aborts the import.
func Import(ctx context.Context, episodes []*model.Episode, cfg ImportConfig, sink BatchSink, progress ProgressCallback) error {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}

	p := ImportProgress{Total: len(episodes)}

	for start := 0; start < len(episodes); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(episodes) {
			end = len(episodes)
		}
		batch := episodes[start:end]

		if err := writeWithRetry(ctx, batch, cfg, sink, &p); err != nil {
			return fmt.Errorf("import aborted at episode %d: %w", start, err)
		}

		p.Processed = end
		if progress != nil {
			progress(p)
		}
	}

	return nil
}

// writeWithRetry attempts a single batch with retries
func writeWithRetry(ctx context.Context, batch []*model.Episode, cfg ImportConfig, sink BatchSink, p *ImportProgress) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.RetryDelay):
			}
		}

		lastErr = sink(ctx, batch)
		if lastErr == nil {
			return nil
		}
		p.Errors = append(p.Errors, lastErr)
	}

	return lastErr
}
