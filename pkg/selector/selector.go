package selector

import (
	"sort"

	"github.com/quarzal/quintile/pkg/model"
)

// Constraints define the feasible region of the binary selection problem
type Constraints struct {
	MaxSelections int     // cardinality cap K
	PrevalenceCap float64 // sum of selected prevalences must not exceed this
}

// DefaultConstraints returns the constraints used by the research runs
func DefaultConstraints() Constraints {
	return Constraints{
		MaxSelections: 3,
		PrevalenceCap: 0.35,
	}
}

// Result holds the selected pairs and the achieved objective
type Result struct {
	Selected   []model.FactorScore
	TotalScore float64
	Prevalence float64 // aggregate prevalence of the selection
}

// Select solves the 0/1 selection problem exactly: maximize total score over
// (factor, side) pairs subject to mutual exclusivity per factor, at most K
// selections, and an aggregate prevalence cap. The candidate space is tiny
// (tens of factors, two sides), so a branch and bound over candidates sorted
// by descending score is exact and effectively instant.
func Select(scores []model.FactorScore, c Constraints) Result {
	candidates := feasibleCandidates(scores, c)
	if len(candidates) == 0 || c.MaxSelections <= 0 {
		return Result{}
	}

	// Prefix sums of the sorted scores give an optimistic bound on what any
	// subtree can still add.
	remaining := make([]float64, len(candidates)+1)
	for i := len(candidates) - 1; i >= 0; i-- {
		remaining[i] = remaining[i+1] + candidates[i].Score
	}

	s := &solver{
		candidates:  candidates,
		remaining:   remaining,
		constraints: c,
	}
	s.branch(0, pick{})

	best := make([]model.FactorScore, len(s.best.chosen))
	copy(best, s.best.chosen)

	sort.Slice(best, func(i, j int) bool {
		ai, aj := abs(best[i].Score), abs(best[j].Score)
		if ai != aj {
			return ai > aj
		}
		if best[i].Factor != best[j].Factor {
			return best[i].Factor < best[j].Factor
		}
		return best[i].Side < best[j].Side
	})
	if len(best) > c.MaxSelections {
		best = best[:c.MaxSelections]
	}

	return Result{
		Selected:   best,
		TotalScore: s.best.score,
		Prevalence: s.best.prevalence,
	}
}

// feasibleCandidates drops pairs that can never appear in an optimal
// selection: invalid scores, non-positive scores, and pairs whose prevalence
// alone exceeds the cap. The rest are sorted by descending score with a
// deterministic tie-break.
func feasibleCandidates(scores []model.FactorScore, c Constraints) []model.FactorScore {
	var out []model.FactorScore
	for _, s := range scores {
		if !s.Valid || s.Score <= 0 {
			continue
		}
		if s.Prevalence > c.PrevalenceCap {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Factor != out[j].Factor {
			return out[i].Factor < out[j].Factor
		}
		return out[i].Side < out[j].Side
	})
	return out
}

type pick struct {
	chosen     []model.FactorScore
	score      float64
	prevalence float64
}

type solver struct {
	candidates  []model.FactorScore
	remaining   []float64
	constraints Constraints
	best        pick
}

func (s *solver) branch(i int, cur pick) {
	if cur.score > s.best.score {
		s.best = pick{
			chosen:     append([]model.FactorScore(nil), cur.chosen...),
			score:      cur.score,
			prevalence: cur.prevalence,
		}
	}
	if i >= len(s.candidates) || len(cur.chosen) >= s.constraints.MaxSelections {
		return
	}
	// Prune: even taking every remaining candidate cannot beat the best
	if cur.score+s.remaining[i] <= s.best.score {
		return
	}

	cand := s.candidates[i]

	// Take the candidate if it fits
	if cur.prevalence+cand.Prevalence <= s.constraints.PrevalenceCap && !conflicts(cur.chosen, cand) {
		next := pick{
			chosen:     append(cur.chosen, cand),
			score:      cur.score + cand.Score,
			prevalence: cur.prevalence + cand.Prevalence,
		}
		s.branch(i+1, next)
	}

	// Skip the candidate
	s.branch(i+1, cur)
}

// conflicts reports whether cand violates mutual exclusivity: a factor may
// not be selected for both sides at once
func conflicts(chosen []model.FactorScore, cand model.FactorScore) bool {
	for _, c := range chosen {
		if c.Factor == cand.Factor {
			return true
		}
	}
	return false
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
