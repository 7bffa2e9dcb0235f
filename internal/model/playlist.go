package model

import "time"

// ResolvedRundown is one contiguous run of segments identified by the
// playlist resolver, before rank assignment or diffing.
type ResolvedRundown struct {
	RundownID  RundownID
	SegmentIDs []SegmentID
	BackTime   *time.Time
}

// ResolvedPlaylist is the resolver's output for one poll of one queue: the
// ordered list of rundowns the queue's stories were partitioned into.
type ResolvedPlaylist struct {
	PlaylistID PlaylistID
	Rundowns   []ResolvedRundown
}
