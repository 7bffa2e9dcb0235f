// Package nrcs defines the interface the watcher loop uses to talk to the
// external newsroom computer system, plus a bounded-pool FTP implementation.
package nrcs

import (
	"context"
	"time"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
)

// ListedSegment is one entry in a queue listing: enough to detect whether a
// story is new or stale, without fetching its body.
type ListedSegment struct {
	SegmentID model.SegmentID
	Name      string
	Modified  time.Time
	Locator   string
}

// ReducedRundown is the result of downloading a queue listing: the ordered
// stories currently on the queue, before partitioning into rundowns.
type ReducedRundown struct {
	GatewayVersion string
	Segments       []ListedSegment
}

// Client is the NRCS adapter contract consumed by the watcher loop. The
// watcher never retries at this layer; a failed call surfaces as a
// FetchFailure and the affected queue is skipped for that poll.
type Client interface {
	// DownloadRundown fetches the current listing for queueID.
	DownloadRundown(ctx context.Context, queueID model.QueueID) (ReducedRundown, error)

	// FetchStoriesByID fetches the full body of the given segments. The
	// returned map may be missing entries the caller requested; callers
	// must treat a missing entry as a CacheMiss, not an error.
	FetchStoriesByID(ctx context.Context, queueID model.QueueID, segmentIDs []model.SegmentID) (map[model.SegmentID]model.UnrankedSegment, error)

	// QueueLength reports the adapter's current in-flight request count.
	// The watcher logs a warning when this is nonzero after a poll
	// completes, per the design note in spec.md §9: it is observed, not
	// acted upon.
	QueueLength() int
}
