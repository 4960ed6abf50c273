package episode

import (
	"math"

	"github.com/quarzal/quintile/pkg/model"
)

// Builder assembles round-trip episodes from a chronological stream of
// fills. Buy fills open lots; sell fills close them FIFO per
// (symbol, strategy). A sell larger than the open quantity closes what is
// available and drops the remainder.
type Builder struct {
	DataVersion int

	lots    map[string][]lot // key = symbol|strategy, oldest lot first
	skipped int              // sells with no open lot
}

type lot struct {
	openedAt  model.Fill
	quantity  float64
	lowWater  float64 // lowest sell-side mark seen while open, for MaxAdverse
	haveWater bool
}

// NewBuilder creates a new episode builder
func NewBuilder(dataVersion int) *Builder {
	return &Builder{
		DataVersion: dataVersion,
		lots:        make(map[string][]lot),
	}
}

// Push processes one fill and returns any episodes it closed
func (b *Builder) Push(f model.Fill) []*model.Episode {
	if f.Quantity <= 0 || f.Price <= 0 {
		return nil
	}

	key := f.Symbol + "|" + f.Strategy

	if f.Side == "buy" {
		b.lots[key] = append(b.lots[key], lot{openedAt: f, quantity: f.Quantity})
		return nil
	}

	open := b.lots[key]
	if len(open) == 0 {
		b.skipped++
		return nil
	}

	// Track adverse excursion on every mark the stream gives us
	for i := range open {
		if !open[i].haveWater || f.Price < open[i].lowWater {
			open[i].lowWater = f.Price
			open[i].haveWater = true
		}
	}

	var episodes []*model.Episode
	remaining := f.Quantity

	for remaining > 0 && len(open) > 0 {
		l := &open[0]
		matched := math.Min(remaining, l.quantity)

		ep := b.close(*l, f)
		episodes = append(episodes, ep)

		l.quantity -= matched
		remaining -= matched
		if l.quantity <= 0 {
			open = open[1:]
		}
	}

	b.lots[key] = open
	return episodes
}

// close builds the episode record for a matched lot
func (b *Builder) close(l lot, closing model.Fill) *model.Episode {
	openPrice := l.openedAt.Price
	ret := 0.0
	if openPrice > 0 {
		ret = (closing.Price - openPrice) / openPrice
	}

	ep := model.NewEpisode(
		closing.Symbol,
		closing.Strategy,
		l.openedAt.Time,
		closing.Time,
		ret,
		b.DataVersion,
	)

	if l.haveWater && openPrice > 0 {
		adverse := (l.lowWater - openPrice) / openPrice
		if adverse < 0 {
			ep.MaxAdverse = adverse
		}
	}

	return ep
}

// ProcessFills processes a batch of fills and returns all closed episodes
func (b *Builder) ProcessFills(fills []model.Fill) []*model.Episode {
	var episodes []*model.Episode
	for _, f := range fills {
		episodes = append(episodes, b.Push(f)...)
	}
	return episodes
}

// OpenLots returns the number of lots still open for a symbol/strategy
func (b *Builder) OpenLots(symbol, strategy string) int {
	return len(b.lots[symbol+"|"+strategy])
}

// Skipped returns how many sells arrived with no open lot to match
func (b *Builder) Skipped() int {
	return b.skipped
}

// Reset clears all open lots and counters
func (b *Builder) Reset() {
	b.lots = make(map[string][]lot)
	b.skipped = 0
}
