package quantile

import (
	"sort"

	"github.com/quarzal/quintile/pkg/model"
)

// DefaultQ is the number of buckets used across the toolkit (quintiles)
const DefaultQ = 5

// Assignment maps episodes to quantile buckets for a single factor.
// Episodes without an observed exposure are excluded from Buckets but
// counted in Total for coverage computation.
type Assignment struct {
	Factor  string
	Q       int
	Buckets [][]int // bucket -> indices into the episode slice, bucket 0 = lowest exposures
	Total   int     // total episodes passed in, including missing exposures
}

// Assign ranks episodes by their exposure to factor and splits them into q
// buckets of as-equal-as-possible size. Ties are broken by original order
// so repeated runs over the same data produce identical buckets.
func Assign(episodes []*model.Episode, factor string, q int) Assignment {
	if q <= 0 {
		q = DefaultQ
	}

	a := Assignment{
		Factor:  factor,
		Q:       q,
		Buckets: make([][]int, q),
		Total:   len(episodes),
	}

	type ranked struct {
		idx   int
		value float64
	}
	var observed []ranked
	for i, e := range episodes {
		if v, ok := e.Exposure(factor); ok {
			observed = append(observed, ranked{idx: i, value: v})
		}
	}
	if len(observed) == 0 {
		return a
	}

	sort.SliceStable(observed, func(i, j int) bool {
		return observed[i].value < observed[j].value
	})

	n := len(observed)
	base := n / q
	extra := n % q // first `extra` buckets get one more element

	pos := 0
	for b := 0; b < q; b++ {
		size := base
		if b < extra {
			size++
		}
		for k := 0; k < size; k++ {
			a.Buckets[b] = append(a.Buckets[b], observed[pos].idx)
			pos++
		}
	}

	return a
}

// Observed returns the number of episodes with a non-missing exposure
func (a Assignment) Observed() int {
	n := 0
	for _, b := range a.Buckets {
		n += len(b)
	}
	return n
}

// Coverage returns the fraction of episodes with a non-missing exposure
func (a Assignment) Coverage() float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(a.Observed()) / float64(a.Total)
}

// Extreme returns the episode indices in the extreme bucket for a side
func (a Assignment) Extreme(side model.Side) []int {
	if len(a.Buckets) == 0 {
		return nil
	}
	if side == model.SideTop {
		return a.Buckets[len(a.Buckets)-1]
	}
	return a.Buckets[0]
}

// Middle returns episode indices in all buckets except the two extremes
func (a Assignment) Middle() []int {
	if len(a.Buckets) <= 2 {
		return nil
	}
	var out []int
	for _, b := range a.Buckets[1 : len(a.Buckets)-1] {
		out = append(out, b...)
	}
	return out
}

// Others returns episode indices of every observed episode outside the
// extreme bucket for the given side
func (a Assignment) Others(side model.Side) []int {
	var out []int
	for b, idxs := range a.Buckets {
		if side == model.SideTop && b == len(a.Buckets)-1 {
			continue
		}
		if side == model.SideBottom && b == 0 {
			continue
		}
		out = append(out, idxs...)
	}
	return out
}

// Prevalence returns the fraction of all episodes (missing included) that
// fall in the extreme bucket for the given side
func (a Assignment) Prevalence(side model.Side) float64 {
	if a.Total == 0 {
		return 0
	}
	return float64(len(a.Extreme(side))) / float64(a.Total)
}
