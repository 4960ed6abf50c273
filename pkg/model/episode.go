package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Fill represents a single execution report used to assemble episodes
type Fill struct {
	Symbol   string    `json:"symbol"`
	Strategy string    `json:"strategy"`
	Time     time.Time `json:"time"`
	Side     string    `json:"side"` // "buy" or "sell"
	Price    float64   `json:"price"`
	Quantity float64   `json:"quantity"`
}

// Episode represents a discrete holding period (open-to-close position)
// with its realized return and the factor exposures observed at open
type Episode struct {
	EpisodeID   string             `json:"episode_id"`
	Symbol      string             `json:"symbol"`
	Strategy    string             `json:"strategy"`
	OpenedAt    time.Time          `json:"opened_at"`
	ClosedAt    time.Time          `json:"closed_at"`
	Return      float64            `json:"return"`      // gross return over the holding period
	MaxAdverse  float64            `json:"max_adverse"` // worst excursion against the position
	Exposures   map[string]float64 `json:"exposures"`   // factor name -> exposure value at open
	DataVersion int                `json:"data_version"`
}

// GenerateEpisodeID creates a deterministic episode ID based on key parameters
// Format: hash(symbol|strategy|opened|closed|data_version)
// This ensures idempotent writes - same parameters always produce same ID
func GenerateEpisodeID(symbol, strategy string, openedAt, closedAt time.Time, dataVersion int) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%d",
		symbol,
		strategy,
		openedAt.Unix(),
		closedAt.Unix(),
		dataVersion,
	)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16]) // use first 16 bytes (32 hex chars)
}

// NewEpisode creates a new Episode with generated ID
func NewEpisode(symbol, strategy string, openedAt, closedAt time.Time, ret float64, dataVersion int) *Episode {
	return &Episode{
		EpisodeID:   GenerateEpisodeID(symbol, strategy, openedAt, closedAt, dataVersion),
		Symbol:      symbol,
		Strategy:    strategy,
		OpenedAt:    openedAt,
		ClosedAt:    closedAt,
		Return:      ret,
		Exposures:   make(map[string]float64),
		DataVersion: dataVersion,
	}
}

// Duration returns the length of the holding period
func (e *Episode) Duration() time.Duration {
	return e.ClosedAt.Sub(e.OpenedAt)
}

// DurationDays returns the holding period length in fractional days
func (e *Episode) DurationDays() float64 {
	return e.ClosedAt.Sub(e.OpenedAt).Hours() / 24
}

// Exposure returns the exposure value for a factor and whether it was observed
func (e *Episode) Exposure(factor string) (float64, bool) {
	v, ok := e.Exposures[factor]
	return v, ok
}

// IsWin returns true if the episode closed with a positive return
func (e *Episode) IsWin() bool {
	return e.Return > 0
}
