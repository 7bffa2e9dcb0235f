// Package resolver partitions an ordered list of NRCS stories into one or
// more logical rundowns using in-content markers.
package resolver

import (
	"encoding/json"
	"time"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
)

// BoundaryDetector reports whether seg starts a new rundown. The resolver's
// contract is deliberately narrow: whatever a detector deems a boundary is
// a boundary. The real NRCS story-body parser (out of scope for this
// gateway, per spec.md §1) is expected to supply the real detection logic;
// DefaultBoundaryDetector is a reasonable stand-in used when none is
// configured.
type BoundaryDetector func(seg model.UnrankedSegment) bool

// BackTimeExtractor reads an optional absolute clock target off a
// rundown-starting story. DefaultBackTimeExtractor is the stand-in used
// when none is configured, mirroring BoundaryDetector.
type BackTimeExtractor func(seg model.UnrankedSegment) *time.Time

type continuityFields struct {
	Continuity bool       `json:"continuity"`
	BackTime   *time.Time `json:"backTime"`
}

// DefaultBoundaryDetector looks for a top-level "continuity" flag in the
// opaque story payload. A story that fails to parse is never a boundary.
func DefaultBoundaryDetector(seg model.UnrankedSegment) bool {
	var f continuityFields
	if err := json.Unmarshal(seg.INewsStory.Raw, &f); err != nil {
		return false
	}
	return f.Continuity
}

// DefaultBackTimeExtractor looks for a top-level "backTime" field alongside
// the continuity marker.
func DefaultBackTimeExtractor(seg model.UnrankedSegment) *time.Time {
	var f continuityFields
	if err := json.Unmarshal(seg.INewsStory.Raw, &f); err != nil {
		return nil
	}
	return f.BackTime
}

// Resolver partitions stories into rundowns per spec.md §4.2.
type Resolver struct {
	IsBoundary  BoundaryDetector
	ExtractBack BackTimeExtractor
}

// New returns a Resolver using the default hooks.
func New() *Resolver {
	return &Resolver{
		IsBoundary:  DefaultBoundaryDetector,
		ExtractBack: DefaultBackTimeExtractor,
	}
}

// Resolve partitions segments (in NRCS listing order) into a ResolvedPlaylist.
//
// Rules (spec.md §4.2):
//  1. A boundary marker starts a new rundown.
//  2. The first rundown is "<playlistID>_1", the next "_2", etc.
//  3. If nothing partitions into a rundown, emit one empty rundown "_1".
//  4. backTime on the last rundown-starting story is that rundown's backTime.
//
// Floated stories (meta.float) are dropped before partitioning: they are
// placeholders that never air and have no place in a resolved playlist.
func (r *Resolver) Resolve(playlistID model.PlaylistID, segments []model.UnrankedSegment) model.ResolvedPlaylist {
	var rundowns []model.ResolvedRundown
	ordinal := 0

	appendRundown := func() *model.ResolvedRundown {
		ordinal++
		rundowns = append(rundowns, model.ResolvedRundown{
			RundownID:  model.DeriveRundownID(playlistID, ordinal),
			SegmentIDs: nil,
		})
		return &rundowns[len(rundowns)-1]
	}

	var current *model.ResolvedRundown
	for _, seg := range segments {
		if seg.INewsStory.Meta.Float {
			continue
		}
		if current == nil || r.IsBoundary(seg) {
			current = appendRundown()
			if bt := r.ExtractBack(seg); bt != nil {
				current.BackTime = bt
			}
		}
		current.SegmentIDs = append(current.SegmentIDs, seg.SegmentID)
	}

	if len(rundowns) == 0 {
		appendRundown()
	}

	return model.ResolvedPlaylist{PlaylistID: playlistID, Rundowns: rundowns}
}
