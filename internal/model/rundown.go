package model

import (
	"math/big"
	"time"
)

// RundownSegment is one segment as it appears inside an INewsRundown: the
// diff- and rank-relevant projection of an UnrankedSegment.
type RundownSegment struct {
	SegmentID SegmentID
	Name      string
	Modified  time.Time
	Locator   string
	Rank      *big.Rat // nil until the rank assigner has run
}

// INewsRundown is the per-poll derived value passed to the differ: one
// resolved rundown together with the cached story data for its segments.
type INewsRundown struct {
	RundownID      RundownID
	Name           string
	GatewayVersion string
	Segments       []RundownSegment // ordered
	BackTime       *time.Time
}

// ReducedSegment is the ordering-state snapshot kept in the segments cache:
// one entry per segment in the current playlist.
type ReducedSegment struct {
	SegmentID SegmentID
	Name      string
	Modified  time.Time
	Rank      *big.Rat
	Locator   string
}
