// Package differ compares a new playlist snapshot against the prior one
// and produces an ordered list of rundown- and segment-level changes.
package differ

import (
	"time"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
)

// RundownChangeKind classifies a rundown-level change.
type RundownChangeKind int

const (
	RundownCreated RundownChangeKind = iota
	RundownUpdated
	RundownDeleted
)

// SegmentChangeKind classifies a segment-level change.
type SegmentChangeKind int

const (
	SegmentCreated SegmentChangeKind = iota
	SegmentChanged
	SegmentMoved
	SegmentDeleted
)

// RundownChange is one rundown-level diff entry. Rundown is populated for
// Created and Updated (the full new rundown, carrying full segments);
// for Deleted it is the zero value.
type RundownChange struct {
	Kind      RundownChangeKind
	RundownID model.RundownID
	Rundown   model.INewsRundown
}

// SegmentChange is one segment-level diff entry, scoped to the rundown it
// was found in. Segment is populated for Created, Changed, and Moved; for
// Deleted it is the zero value (only SegmentID is meaningful).
type SegmentChange struct {
	Kind      SegmentChangeKind
	RundownID model.RundownID
	SegmentID model.SegmentID
	Segment   model.RundownSegment
}

// ChangeSet is the differ's output: ordered so that the watcher loop can
// emit events by walking it front to back without any further sorting,
// per spec.md §4.4's emission order.
type ChangeSet struct {
	RundownChanges []RundownChange
	SegmentChanges []SegmentChange
}

// Diff compares newRundowns against oldRundowns.
//
// Classification (spec.md §4.4):
//   - A rundown is Deleted iff its id is absent from new.
//   - A rundown is Created iff absent from old.
//   - A rundown is Updated iff present in both and its backTime changed;
//     segment set or ordering changes alone are fully captured by the
//     segment-level events below and never also raise Updated.
//   - A segment is Deleted iff absent from the new rundown it belonged to,
//     even if it reappears under a different new rundown id (that is a
//     separate Created event there).
//   - A segment is Created iff its id is absent from old in any rundown.
//   - A segment is Moved iff present in both with the same locator but a
//     different position among peers.
//   - A segment is Changed iff present in both and locator differs.
func Diff(newRundowns, oldRundowns []model.INewsRundown) ChangeSet {
	oldByID := indexRundowns(oldRundowns)
	newByID := indexRundowns(newRundowns)

	allSegmentIDsInOld := make(map[model.SegmentID]bool)
	for _, rd := range oldRundowns {
		for _, seg := range rd.Segments {
			allSegmentIDsInOld[seg.SegmentID] = true
		}
	}

	var cs ChangeSet

	// Step 1: RundownDeleted, then SegmentDeleted.
	for _, old := range oldRundowns {
		if _, ok := newByID[old.RundownID]; !ok {
			cs.RundownChanges = append(cs.RundownChanges, RundownChange{
				Kind:      RundownDeleted,
				RundownID: old.RundownID,
			})
		}
	}
	for _, old := range oldRundowns {
		newRundown, stillExists := newByID[old.RundownID]
		newSegIDs := map[model.SegmentID]bool{}
		if stillExists {
			for _, seg := range newRundown.Segments {
				newSegIDs[seg.SegmentID] = true
			}
		}
		for _, seg := range old.Segments {
			if !newSegIDs[seg.SegmentID] {
				cs.SegmentChanges = append(cs.SegmentChanges, SegmentChange{
					Kind:      SegmentDeleted,
					RundownID: old.RundownID,
					SegmentID: seg.SegmentID,
				})
			}
		}
	}

	// Step 2: RundownCreated, then RundownUpdated. Track which rundowns'
	// segments are already fully covered by one of these events.
	covered := make(map[model.RundownID]bool)
	for _, nr := range newRundowns {
		if _, existed := oldByID[nr.RundownID]; !existed {
			cs.RundownChanges = append(cs.RundownChanges, RundownChange{
				Kind:      RundownCreated,
				RundownID: nr.RundownID,
				Rundown:   nr,
			})
			covered[nr.RundownID] = true
		}
	}
	for _, nr := range newRundowns {
		old, existed := oldByID[nr.RundownID]
		if !existed {
			continue // handled as Created above
		}
		if rundownUpdated(old, nr) {
			cs.RundownChanges = append(cs.RundownChanges, RundownChange{
				Kind:      RundownUpdated,
				RundownID: nr.RundownID,
				Rundown:   nr,
			})
			covered[nr.RundownID] = true
		}
	}

	// Step 3: SegmentChanged, SegmentCreated, SegmentMoved, only for
	// segments whose rundown isn't already covered by step 2.
	for _, nr := range newRundowns {
		if covered[nr.RundownID] {
			continue
		}
		old := oldByID[nr.RundownID]
		oldSegs := indexSegments(old.Segments)
		oldOrder := segmentOrder(old.Segments)
		newOrder := segmentOrder(nr.Segments)
		oldPos := positionIndex(oldOrder)
		newPos := positionIndex(newOrder)

		for _, seg := range nr.Segments {
			oldSeg, existedBefore := oldSegs[seg.SegmentID]
			switch {
			case !allSegmentIDsInOld[seg.SegmentID]:
				cs.SegmentChanges = append(cs.SegmentChanges, SegmentChange{
					Kind: SegmentCreated, RundownID: nr.RundownID, SegmentID: seg.SegmentID, Segment: seg,
				})
			case !existedBefore:
				// Existed elsewhere in old, newly arrived in this rundown:
				// it is a Created event scoped to this rundown (the delete
				// from its previous rundown was already emitted in step 1).
				cs.SegmentChanges = append(cs.SegmentChanges, SegmentChange{
					Kind: SegmentCreated, RundownID: nr.RundownID, SegmentID: seg.SegmentID, Segment: seg,
				})
			case oldSeg.Locator != seg.Locator:
				cs.SegmentChanges = append(cs.SegmentChanges, SegmentChange{
					Kind: SegmentChanged, RundownID: nr.RundownID, SegmentID: seg.SegmentID, Segment: seg,
				})
			case relativeOrderChanged(seg.SegmentID, oldPos, newPos, oldOrder, newOrder):
				cs.SegmentChanges = append(cs.SegmentChanges, SegmentChange{
					Kind: SegmentMoved, RundownID: nr.RundownID, SegmentID: seg.SegmentID, Segment: seg,
				})
			}
		}
	}

	return cs
}

func indexRundowns(rundowns []model.INewsRundown) map[model.RundownID]model.INewsRundown {
	m := make(map[model.RundownID]model.INewsRundown, len(rundowns))
	for _, rd := range rundowns {
		m[rd.RundownID] = rd
	}
	return m
}

func indexSegments(segs []model.RundownSegment) map[model.SegmentID]model.RundownSegment {
	m := make(map[model.SegmentID]model.RundownSegment, len(segs))
	for _, s := range segs {
		m[s.SegmentID] = s
	}
	return m
}

func segmentOrder(segs []model.RundownSegment) []model.SegmentID {
	out := make([]model.SegmentID, len(segs))
	for i, s := range segs {
		out[i] = s.SegmentID
	}
	return out
}

func positionIndex(order []model.SegmentID) map[model.SegmentID]int {
	m := make(map[model.SegmentID]int, len(order))
	for i, id := range order {
		m[id] = i
	}
	return m
}

// rundownUpdated reports whether a rundown that exists in both snapshots
// changed at the rundown level in a way not wholly captured by
// segment-level changes (spec.md §4.4). Every segment-set or ordering
// delta is expressible as some combination of SegmentCreated, SegmentChanged,
// SegmentMoved, and SegmentDeleted, so none of those alone should also
// raise RundownUpdated: a pure insertion, a locator change, a reorder, and
// a set of deletions (scenario: a boundary marker splitting segments into
// a new rundown) are all fully captured by the segment-level events step 3
// and step 1 already emit. A backTime shift is the one rundown-level
// property with no segment-level event of its own, so it is the only thing
// that qualifies here.
func rundownUpdated(old, new_ model.INewsRundown) bool {
	return !backTimeEqual(old.BackTime, new_.BackTime)
}

func backTimeEqual(a, b *time.Time) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return a.Equal(*b)
	}
}

// relativeOrderChanged reports whether segID's position relative to the
// other segments common to both old and new orderings changed.
func relativeOrderChanged(segID model.SegmentID, oldPos, newPos map[model.SegmentID]int, oldOrder, newOrder []model.SegmentID) bool {
	oi, ok := oldPos[segID]
	if !ok {
		return false
	}
	ni := newPos[segID]

	// Compare segID's relative rank among the segments present in both
	// orderings: count how many common segments precede it in each.
	oldBefore := countCommonBefore(oldOrder, oi, newPos)
	newBefore := countCommonBefore(newOrder, ni, oldPos)
	return oldBefore != newBefore
}

func countCommonBefore(order []model.SegmentID, upto int, otherPos map[model.SegmentID]int) int {
	n := 0
	for i := 0; i < upto; i++ {
		if _, ok := otherPos[order[i]]; ok {
			n++
		}
	}
	return n
}
