package impact

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarzal/quintile/pkg/model"
	"github.com/quarzal/quintile/pkg/quantile"
)

// RefMode selects the reference population a bucket is compared against
type RefMode string

const (
	// RefOthers compares the extreme bucket against every other observed episode
	RefOthers RefMode = "others"
	// RefMiddle compares the extreme bucket against the middle quintiles only
	RefMiddle RefMode = "middle"
)

// Config holds scoring configuration
type Config struct {
	Q               int     // number of quantile buckets
	Resamples       int     // bootstrap resamples (typically 500-1000)
	PenaltyLambda   float64 // weight of the bootstrap variance penalty
	Reference       RefMode
	UseSignificance bool    // scale scores by (1 - Welch p-value)
	MinCoverage     float64 // factors below this coverage are not scored

	// Recency: down-weight factors whose extreme bucket has not been
	// populated recently. HalfLife 0 disables the weight, GateDays 0
	// disables the hard gate.
	RecencyHalfLifeDays float64
	RecencyGateDays     float64

	// UsageLambda is the per-day decay rate of the penalty applied for past
	// recommendations of the same (factor, side). 0 disables.
	UsageLambda float64

	Seed        int64
	Parallelism int
}

// DefaultConfig returns default scoring configuration
func DefaultConfig() Config {
	return Config{
		Q:               quantile.DefaultQ,
		Resamples:       800,
		PenaltyLambda:   50,
		Reference:       RefOthers,
		UseSignificance: true,
		MinCoverage:     0.5,
		Seed:            1,
		Parallelism:     4,
	}
}

// UsageHistory maps a (factor, side) key to the timestamps of past
// recommendations, feeding the usage-decay weight
type UsageHistory map[string][]time.Time

// Engine computes bootstrap-penalized impact scores per factor and side
type Engine struct {
	cfg Config
}

// NewEngine creates a new scoring engine
func NewEngine(cfg Config) *Engine {
	if cfg.Q <= 0 {
		cfg.Q = quantile.DefaultQ
	}
	if cfg.Resamples <= 0 {
		cfg.Resamples = 800
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	return &Engine{cfg: cfg}
}

// Score computes impact scores for every (factor, side) pair. Factors are
// scored in parallel; the result order is deterministic (factor, then side).
func (e *Engine) Score(ctx context.Context, episodes []*model.Episode, factors []string, usage UsageHistory, now time.Time) ([]model.FactorScore, error) {
	normalized := NormalizeReturns(episodes)

	var mu sync.Mutex
	scores := make([]model.FactorScore, 0, len(factors)*2)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)

	for _, factor := range factors {
		factor := factor
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			a := quantile.Assign(episodes, factor, e.cfg.Q)
			for _, side := range []model.Side{model.SideTop, model.SideBottom} {
				s := e.scoreSide(episodes, normalized, a, side, usage, now)
				mu.Lock()
				scores = append(scores, s)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Factor != scores[j].Factor {
			return scores[i].Factor < scores[j].Factor
		}
		return scores[i].Side < scores[j].Side
	})

	return scores, nil
}

// scoreSide scores a single (factor, side) pair
func (e *Engine) scoreSide(episodes []*model.Episode, normalized []float64, a quantile.Assignment, side model.Side, usage UsageHistory, now time.Time) model.FactorScore {
	s := model.FactorScore{
		Factor:     a.Factor,
		Side:       side,
		PValue:     1,
		Prevalence: a.Prevalence(side),
		Coverage:   a.Coverage(),
		RecencyWt:  1,
		UsageWt:    1,
	}

	if s.Coverage < e.cfg.MinCoverage {
		return s
	}

	bucketIdx := a.Extreme(side)
	var refIdx []int
	if e.cfg.Reference == RefMiddle {
		refIdx = a.Middle()
	} else {
		refIdx = a.Others(side)
	}

	s.BucketSize = len(bucketIdx)
	s.RefSize = len(refIdx)

	// Empty bucket or reference: score is defined as zero, never an error
	if len(bucketIdx) == 0 || len(refIdx) == 0 {
		return s
	}

	bucket := gather(normalized, bucketIdx)
	ref := gather(normalized, refIdx)

	s.Valid = true
	s.MeanDiff = meanOf(bucket) - meanOf(ref)

	rng := rngFor(e.cfg.Seed, s.Key())
	s.BootstrapVar = bootstrapVariance(rng, bucket, ref, e.cfg.Resamples)

	score := s.MeanDiff / (1 + e.cfg.PenaltyLambda*s.BootstrapVar)

	if e.cfg.UseSignificance {
		s.PValue = welchPValue(bucket, ref)
		score *= 1 - s.PValue
	}

	ageDays := e.bucketAgeDays(episodes, bucketIdx, now)
	if e.cfg.RecencyGateDays > 0 && ageDays > e.cfg.RecencyGateDays {
		s.RecencyWt = 0
	} else if e.cfg.RecencyHalfLifeDays > 0 {
		s.RecencyWt = math.Exp(-math.Ln2 * ageDays / e.cfg.RecencyHalfLifeDays)
	}
	score *= s.RecencyWt

	if e.cfg.UsageLambda > 0 && usage != nil {
		s.UsageWt = 1 / (1 + usageDecaySum(usage[s.Key()], now, e.cfg.UsageLambda))
		score *= s.UsageWt
	}

	s.Score = score
	return s
}

// bucketAgeDays returns days since the most recent episode in the bucket closed
func (e *Engine) bucketAgeDays(episodes []*model.Episode, bucketIdx []int, now time.Time) float64 {
	var latest time.Time
	for _, idx := range bucketIdx {
		if episodes[idx].ClosedAt.After(latest) {
			latest = episodes[idx].ClosedAt
		}
	}
	if latest.IsZero() {
		return 0
	}
	age := now.Sub(latest).Hours() / 24
	if age < 0 {
		return 0
	}
	return age
}

// usageDecaySum totals exponentially decayed weights of past recommendations
func usageDecaySum(times []time.Time, now time.Time, lambda float64) float64 {
	sum := 0.0
	for _, t := range times {
		ageDays := now.Sub(t).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		sum += math.Exp(-lambda * ageDays)
	}
	return sum
}
