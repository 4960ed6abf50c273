package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quarzal/quintile/pkg/model"
)

// EpisodeSource defines the interface for loading historical episodes
type EpisodeSource interface {
	// FetchEpisodes retrieves episodes ordered by close time (oldest first)
	FetchEpisodes(ctx context.Context) ([]*model.Episode, error)
}

// CSVSource loads episodes from a CSV file. The expected layout is a header
// row of
//
//	symbol,strategy,opened_at,closed_at,return,max_adverse,<factor1>,<factor2>,...
//
// with RFC3339 timestamps. Every column after max_adverse is treated as a
// factor exposure; empty cells mean the exposure was not observed.
type CSVSource struct {
	Path        string
	DataVersion int
}

// fixed columns preceding the factor exposure columns
const csvFixedColumns = 6

// NewCSVSource creates a CSV episode source
func NewCSVSource(path string, dataVersion int) *CSVSource {
	return &CSVSource{Path: path, DataVersion: dataVersion}
}

// FetchEpisodes reads and parses the whole file
func (s *CSVSource) FetchEpisodes(ctx context.Context) ([]*model.Episode, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) < csvFixedColumns {
		return nil, fmt.Errorf("csv header has %d columns, need at least %d", len(header), csvFixedColumns)
	}
	factors := header[csvFixedColumns:]

	var episodes []*model.Episode
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		line++

		ep, err := s.parseRecord(record, factors)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		episodes = append(episodes, ep)
	}

	return episodes, nil
}

// parseRecord converts one CSV row into an episode
func (s *CSVSource) parseRecord(record, factors []string) (*model.Episode, error) {
	if len(record) != csvFixedColumns+len(factors) {
		return nil, fmt.Errorf("expected %d fields, got %d", csvFixedColumns+len(factors), len(record))
	}

	openedAt, err := time.Parse(time.RFC3339, record[2])
	if err != nil {
		return nil, fmt.Errorf("bad opened_at %q: %w", record[2], err)
	}
	closedAt, err := time.Parse(time.RFC3339, record[3])
	if err != nil {
		return nil, fmt.Errorf("bad closed_at %q: %w", record[3], err)
	}
	ret, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return nil, fmt.Errorf("bad return %q: %w", record[4], err)
	}

	ep := model.NewEpisode(record[0], record[1], openedAt, closedAt, ret, s.DataVersion)

	if record[5] != "" {
		maxAdverse, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return nil, fmt.Errorf("bad max_adverse %q: %w", record[5], err)
		}
		ep.MaxAdverse = maxAdverse
	}

	for i, factor := range factors {
		cell := record[csvFixedColumns+i]
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("bad exposure %s=%q: %w", factor, cell, err)
		}
		ep.Exposures[factor] = v
	}

	return ep, nil
}
