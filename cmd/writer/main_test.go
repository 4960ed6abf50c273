package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarzal/quintile/pkg/episode"
	"github.com/quarzal/quintile/pkg/model"
)

func TestRecentSummary_Empty(t *testing.T) {
	r := episode.NewRing(8)
	assert.Equal(t, "no recent episodes", recentSummary(r))
}

func TestRecentSummary_Stats(t *testing.T) {
	r := episode.NewRing(8)
	for _, ret := range []float64{0.10, -0.02, 0.04, -0.04} {
		r.Push(&model.Episode{Return: ret})
	}

	assert.Equal(t, "last 4: win rate 0.50, mean return +0.0200", recentSummary(r))
}
