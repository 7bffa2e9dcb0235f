package watcher

import "errors"

// Error kinds per spec.md §7. These are sentinels wrapped with fmt.Errorf's
// %w so callers can errors.Is against them; the taxonomy is kinds, not
// concrete types, mirroring the teacher's ErrStreamEnded/ErrRenditionEnded
// pattern in the original orchestrator's repository.go.
var (
	// ErrFetchFailure: NRCS download or story fetch failed. The affected
	// queue is skipped for this poll; previous caches are preserved
	// untouched; status is reported WARNING_MAJOR.
	ErrFetchFailure = errors.New("nrcs fetch failure")

	// ErrCacheMiss: an expected story is missing from cache after fetch.
	// The affected segment is dropped from this poll's emission.
	ErrCacheMiss = errors.New("story cache miss")

	// ErrRankAssignmentFailure: the ranker returned no rank for a required
	// segment. The segment is emitted with its old rank if known, else 0.
	ErrRankAssignmentFailure = errors.New("rank assignment failure")

	// ErrVersionMismatch: the rundown's gatewayVersion differs from this
	// gateway's configured version. The rundown is silently skipped.
	ErrVersionMismatch = errors.New("gateway version mismatch")
)
