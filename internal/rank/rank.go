// Package rank assigns stable, insertion-friendly fractional ranks to the
// segments of a rundown across polls.
package rank

import (
	"math/big"
	"sort"
	"time"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
)

const (
	// DefaultFractionFloor is the precision threshold below which a full
	// integer rebase is preferred over further interpolation.
	DefaultFractionFloor = 1e-6
	// DefaultRebaseCooldown is the minimum interval between forced integer
	// rebases for a single rundown.
	DefaultRebaseCooldown = 30 * time.Second
)

// Assigner assigns ranks per spec.md §4.3.
type Assigner struct {
	FractionFloor  float64
	RebaseCooldown time.Duration

	// now is overridable for tests; defaults to time.Now.
	now func() time.Time
}

// NewAssigner returns an Assigner using the given thresholds, falling back
// to the package defaults when zero values are passed.
func NewAssigner(fractionFloor float64, rebaseCooldown time.Duration) *Assigner {
	if fractionFloor <= 0 {
		fractionFloor = DefaultFractionFloor
	}
	if rebaseCooldown <= 0 {
		rebaseCooldown = DefaultRebaseCooldown
	}
	return &Assigner{FractionFloor: fractionFloor, RebaseCooldown: rebaseCooldown, now: time.Now}
}

// RundownRanking is the result of assigning ranks to one rundown's ordered
// segments.
type RundownRanking struct {
	RundownID model.RundownID
	// Assigned holds an entry only for segments whose rank changed this
	// poll (new, moved, or rebased). Outside a forced integer rebase (which
	// assigns every segment), an unmoved segment never appears here, per
	// spec.md §4.3: "never emit a rank change for an unmoved segment."
	Assigned map[model.SegmentID]*big.Rat
	// RecalculatedAsIntegers is true iff a full integer rebase ran.
	RecalculatedAsIntegers bool
}

// Assign computes ranks for one rundown.
//
// order is the new, resolved segment order. previousRanks is the prior
// rundown's SegmentID -> rank mapping (nil/empty for a brand-new rundown).
// lastForcedRebase is the last time this rundown was rebased to integers
// (zero value if never).
func (a *Assigner) Assign(rundownID model.RundownID, order []model.SegmentID, previousRanks map[model.SegmentID]*big.Rat, lastForcedRebase time.Time) RundownRanking {
	if len(order) == 0 {
		return RundownRanking{RundownID: rundownID, Assigned: map[model.SegmentID]*big.Rat{}}
	}

	if len(previousRanks) == 0 {
		return RundownRanking{RundownID: rundownID, Assigned: integerRanks(order), RecalculatedAsIntegers: false}
	}

	assigned, minGap := a.interpolate(order, previousRanks)

	if minGap != nil && asFloat(minGap) < a.FractionFloor && a.nowFn().Sub(lastForcedRebase) >= a.RebaseCooldown {
		return RundownRanking{RundownID: rundownID, Assigned: integerRanks(order), RecalculatedAsIntegers: true}
	}

	return RundownRanking{RundownID: rundownID, Assigned: assigned, RecalculatedAsIntegers: false}
}

func (a *Assigner) nowFn() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// integerRanks assigns 1, 2, 3, ... to every segment in order.
func integerRanks(order []model.SegmentID) map[model.SegmentID]*big.Rat {
	out := make(map[model.SegmentID]*big.Rat, len(order))
	for i, id := range order {
		out[id] = big.NewRat(int64(i+1), 1)
	}
	return out
}

// anchors returns the longest subsequence of ids present in both oldOrder
// and newOrder that appears in the same relative order in both: the set of
// segments that did not move relative to each other, and therefore keep
// their previous rank.
func anchors(oldOrder, newOrder []model.SegmentID) map[model.SegmentID]bool {
	n, m := len(oldOrder), len(newOrder)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if oldOrder[i] == newOrder[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}
	out := make(map[model.SegmentID]bool)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case oldOrder[i] == newOrder[j]:
			out[oldOrder[i]] = true
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return out
}

// interpolate assigns ranks to every segment in order: anchors keep their
// previous rank; everything else is interpolated between the nearest
// anchors (or the rundown boundary). It returns only the entries that
// changed, plus the smallest gap produced by any interpolation (nil if no
// interpolation was needed).
func (a *Assigner) interpolate(order []model.SegmentID, previousRanks map[model.SegmentID]*big.Rat) (map[model.SegmentID]*big.Rat, *big.Rat) {
	var oldOrder []model.SegmentID
	for id := range previousRanks {
		oldOrder = append(oldOrder, id)
	}
	sortByRank(oldOrder, previousRanks)

	anchorSet := anchors(oldOrder, order)

	changed := make(map[model.SegmentID]*big.Rat)
	var minGap *big.Rat

	// final holds the rank ultimately assigned to every segment in order,
	// anchors and interpolated alike, so later interpolations can look
	// back at the immediately preceding segment's final rank.
	final := make(map[model.SegmentID]*big.Rat, len(order))

	for idx, id := range order {
		if anchorSet[id] {
			final[id] = previousRanks[id]
			continue
		}

		left := lowerBound(final, order, idx)
		right := upperBoundPrevious(previousRanks, anchorSet, order, idx)

		newRank := midpoint(left, right)
		final[id] = newRank
		changed[id] = newRank

		gap := gapAround(left, right, newRank)
		if gap != nil && (minGap == nil || gap.Cmp(minGap) < 0) {
			minGap = gap
		}
	}

	return changed, minGap
}

// lowerBound returns the final rank of the nearest already-assigned
// predecessor of order[idx], or nil if idx is at the start.
func lowerBound(final map[model.SegmentID]*big.Rat, order []model.SegmentID, idx int) *big.Rat {
	if idx == 0 {
		return nil
	}
	return final[order[idx-1]]
}

// upperBoundPrevious returns the previous rank of the nearest following
// anchor after idx, or nil if there is none (insertion at the end).
func upperBoundPrevious(previousRanks map[model.SegmentID]*big.Rat, anchorSet map[model.SegmentID]bool, order []model.SegmentID, idx int) *big.Rat {
	for j := idx + 1; j < len(order); j++ {
		if anchorSet[order[j]] {
			return previousRanks[order[j]]
		}
	}
	return nil
}

func midpoint(left, right *big.Rat) *big.Rat {
	switch {
	case left == nil && right == nil:
		return big.NewRat(1, 1)
	case left == nil:
		return new(big.Rat).Sub(right, big.NewRat(1, 1))
	case right == nil:
		return new(big.Rat).Add(left, big.NewRat(1, 1))
	default:
		sum := new(big.Rat).Add(left, right)
		return sum.Quo(sum, big.NewRat(2, 1))
	}
}

func gapAround(left, right, assigned *big.Rat) *big.Rat {
	var gap *big.Rat
	if left != nil {
		g := new(big.Rat).Sub(assigned, left)
		gap = g
	}
	if right != nil {
		g := new(big.Rat).Sub(right, assigned)
		if gap == nil || g.Cmp(gap) < 0 {
			gap = g
		}
	}
	return gap
}

func asFloat(r *big.Rat) float64 {
	f, _ := r.Float64()
	return f
}

func sortByRank(ids []model.SegmentID, ranks map[model.SegmentID]*big.Rat) {
	sort.Slice(ids, func(i, j int) bool {
		return ranks[ids[i]].Cmp(ranks[ids[j]]) < 0
	})
}
