// Package model holds the shared entities that flow between the NRCS
// adapter, the playlist resolver, the rank assigner, the playlist differ,
// and the watcher loop. None of these types know how to fetch or persist
// anything; they are pure data.
package model

import "fmt"

// QueueID identifies a monitored NRCS queue, e.g. "SHOW.RUNDOWN".
type QueueID string

// PlaylistID identifies all content associated with one queue before it is
// partitioned into rundowns.
type PlaylistID string

// RundownID identifies one contiguous run of segments within a playlist.
// A RundownID is always derived from a PlaylistID; see DeriveRundownID.
type RundownID string

// SegmentID identifies one editorial item (story).
type SegmentID string

// DeriveRundownID returns the RundownID for the ordinal-th rundown (1-based)
// carved out of playlistID.
func DeriveRundownID(playlistID PlaylistID, ordinal int) RundownID {
	return RundownID(fmt.Sprintf("%s_%d", playlistID, ordinal))
}
