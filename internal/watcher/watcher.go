// Package watcher is the Rundown Watcher: it fetches rundowns and their
// stories from the NRCS, resolves them into logical rundowns, assigns
// stable ranks, diffs against the prior snapshot, and emits a normalised
// stream of changes. See spec.md §4.5 for the full poll-cycle contract.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/andr9528/inews-ftp-gateway/internal/controlplane"
	"github.com/andr9528/inews-ftp-gateway/internal/differ"
	"github.com/andr9528/inews-ftp-gateway/internal/model"
	"github.com/andr9528/inews-ftp-gateway/internal/nrcs"
	"github.com/andr9528/inews-ftp-gateway/internal/rank"
	"github.com/andr9528/inews-ftp-gateway/internal/resolver"
)

// QueueConfig is one monitored NRCS queue.
type QueueConfig struct {
	QueueID model.QueueID
	Alias   string
}

// Config is the Watcher's immutable configuration for one run. A new
// Config requires a new Watcher (see internal/supervisor for the
// rebuild-on-change wiring).
type Config struct {
	Queues             []QueueConfig
	PollInterval       time.Duration
	GatewayVersion     string
	RankFractionFloor  float64
	RankRebaseCooldown time.Duration
}

// Watcher is the orchestrator described in spec.md §4.5. It owns every
// cache in spec.md §3 and drives a single-flight poll timer.
type Watcher struct {
	cfg     Config
	nrcs    nrcs.Client
	cp      controlplane.Client
	resolve *resolver.Resolver
	rankAsn *rank.Assigner
	sink    EventSink
	log     *slog.Logger

	// mu is the processing lock: it guards the whole poll cycle and every
	// externally invoked mutation (ResyncRundown), per spec.md §5.
	mu sync.Mutex

	iNewsDataCache            map[model.SegmentID]model.UnrankedSegment
	segments                  map[model.SegmentID]model.ReducedSegment
	rundowns                  map[model.RundownID][]model.SegmentID
	playlists                 map[model.PlaylistID][]model.RundownID
	cachedAssignedRundowns    map[model.PlaylistID][]model.INewsRundown
	cachedPlaylistAssignments map[model.PlaylistID]model.ResolvedPlaylist
	previousRanks             map[model.RundownID]map[model.SegmentID]*big.Rat
	lastForcedRebase          map[model.RundownID]time.Time
	skipCacheForRundown       map[model.RundownID]bool

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New constructs a Watcher. It does not start polling; call Start.
func New(cfg Config, nrcsClient nrcs.Client, cpClient controlplane.Client, sink EventSink, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	if sink == nil {
		sink = NopEventSink{}
	}
	return &Watcher{
		cfg:                       cfg,
		nrcs:                      nrcsClient,
		cp:                        cpClient,
		resolve:                   resolver.New(),
		rankAsn:                   rank.NewAssigner(cfg.RankFractionFloor, cfg.RankRebaseCooldown),
		sink:                      sink,
		log:                       log,
		iNewsDataCache:            make(map[model.SegmentID]model.UnrankedSegment),
		segments:                  make(map[model.SegmentID]model.ReducedSegment),
		rundowns:                  make(map[model.RundownID][]model.SegmentID),
		playlists:                 make(map[model.PlaylistID][]model.RundownID),
		cachedAssignedRundowns:    make(map[model.PlaylistID][]model.INewsRundown),
		cachedPlaylistAssignments: make(map[model.PlaylistID]model.ResolvedPlaylist),
		previousRanks:             make(map[model.RundownID]map[model.SegmentID]*big.Rat),
		lastForcedRebase:          make(map[model.RundownID]time.Time),
		skipCacheForRundown:       make(map[model.RundownID]bool),
	}
}

// Start begins polling. It returns immediately; the poll loop runs on a
// background goroutine until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			w.pollAllQueues(ctx)

			timer := time.NewTimer(w.cfg.PollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
}

// Stop cancels the poll timer and blocks until any in-flight cycle
// finishes, per spec.md §5's cancellation rule. Safe to call repeatedly.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
	})
}

// ResyncRundown invalidates every cache entry for rundownID and arms the
// skip-cache flag so the next poll treats it as if freshly discovered,
// bypassing the control-plane-cache-assisted cold-start baseline (see
// DESIGN.md for the reasoning behind this specific interpretation of
// spec.md §4.5/§9's resync semantics).
func (w *Watcher) ResyncRundown(rundownID model.RundownID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, segID := range w.rundowns[rundownID] {
		delete(w.iNewsDataCache, segID)
		delete(w.segments, segID)
	}
	delete(w.rundowns, rundownID)
	delete(w.previousRanks, rundownID)
	delete(w.lastForcedRebase, rundownID)
	w.skipCacheForRundown[rundownID] = true

	for playlistID, rundownIDs := range w.playlists {
		for _, rid := range rundownIDs {
			if rid == rundownID {
				delete(w.cachedAssignedRundowns, playlistID)
				delete(w.cachedPlaylistAssignments, playlistID)
			}
		}
	}
}

// pollAllQueues runs one full poll cycle: every configured queue, in
// configured order, under a single acquisition of the processing lock.
func (w *Watcher) pollAllQueues(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	cycleID := uuid.NewString()
	var failures *multierror.Error

	for _, q := range w.cfg.Queues {
		if err := w.pollQueue(ctx, cycleID, q); err != nil {
			failures = multierror.Append(failures, fmt.Errorf("queue %s: %w", q.QueueID, err))
			w.sink.Warning("poll failed", map[string]any{"cycle": cycleID, "queue": q.QueueID, "error": err.Error()})
		}
	}

	if n := w.nrcs.QueueLength(); n > 0 {
		w.sink.Warning("nrcs adapter has backlog after poll", map[string]any{"cycle": cycleID, "queue_length": n})
	}

	status := StatusGood
	var messages []string
	if failures.ErrorOrNil() != nil {
		status = StatusWarningMajor
		for _, err := range failures.Errors {
			messages = append(messages, err.Error())
		}
	}
	if err := w.cp.SetStatus(ctx, controlplane.StatusCode(status), messages); err != nil {
		w.sink.Warning("status report failed", map[string]any{"cycle": cycleID, "error": err.Error()})
	}
}

// pollQueue implements the twelve-step poll cycle of spec.md §4.5 for one
// queue. The caller already holds the processing lock.
func (w *Watcher) pollQueue(ctx context.Context, cycleID string, q QueueConfig) error {
	playlistID := model.PlaylistID(q.QueueID)
	log := w.log.With("cycle", cycleID, "queue", q.QueueID)

	listing, err := w.nrcs.DownloadRundown(ctx, q.QueueID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}

	if listing.GatewayVersion != "" && listing.GatewayVersion != w.cfg.GatewayVersion {
		log.Warn(ErrVersionMismatch.Error(), "got", listing.GatewayVersion, "want", w.cfg.GatewayVersion)
		return nil
	}

	staleIDs := w.staleSegmentIDs(listing)
	if len(staleIDs) > 0 {
		fetched, err := w.nrcs.FetchStoriesByID(ctx, q.QueueID, staleIDs)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFetchFailure, err)
		}
		for id, seg := range fetched {
			w.iNewsDataCache[id] = seg
		}
	}

	orderedStories := make([]model.UnrankedSegment, 0, len(listing.Segments))
	for _, ls := range listing.Segments {
		seg, ok := w.iNewsDataCache[ls.SegmentID]
		if !ok {
			log.Error(ErrCacheMiss.Error(), "segment", ls.SegmentID)
			w.sink.Error(ErrCacheMiss.Error(), map[string]any{"cycle": cycleID, "queue": q.QueueID, "segment": ls.SegmentID})
			continue
		}
		orderedStories = append(orderedStories, seg)
	}

	resolved := w.resolve.Resolve(playlistID, orderedStories)

	oldRundowns := w.buildOldBaseline(ctx, playlistID, resolved, staleIDs)
	newRundowns := w.buildNewRundowns(resolved, listing.GatewayVersion)
	rankings := w.assignRanks(playlistID, resolved)
	w.enrichRundownRanks(newRundowns, rankings)

	changes := differ.Diff(newRundowns, oldRundowns)

	w.emitChanges(changes, rankings)

	w.commitCaches(playlistID, resolved, newRundowns, rankings)

	return nil
}

// staleSegmentIDs returns the ids that are missing from iNewsDataCache, or
// whose listed locator differs from the cached one.
func (w *Watcher) staleSegmentIDs(listing nrcs.ReducedRundown) []model.SegmentID {
	var stale []model.SegmentID
	for _, ls := range listing.Segments {
		cached, ok := w.iNewsDataCache[ls.SegmentID]
		if !ok || cached.Locator != ls.Locator {
			stale = append(stale, ls.SegmentID)
		}
	}
	return stale
}

// buildOldBaseline returns the prior INewsRundown snapshot to diff against.
// Normally this is exactly the last poll's cachedAssignedRundowns. On cold
// start (no cached snapshot yet for this playlist) it is synthesized from
// the control-plane cache for the resolved rundowns' stale segments, so a
// process restart does not re-announce segments the control plane already
// has. A rundown under skipCacheForRundown gets an empty baseline instead
// (see ResyncRundown's doc comment).
func (w *Watcher) buildOldBaseline(ctx context.Context, playlistID model.PlaylistID, resolved model.ResolvedPlaylist, staleIDs []model.SegmentID) []model.INewsRundown {
	if cached, ok := w.cachedAssignedRundowns[playlistID]; ok {
		out := make([]model.INewsRundown, 0, len(cached))
		for _, rd := range cached {
			if w.skipCacheForRundown[rd.RundownID] {
				delete(w.skipCacheForRundown, rd.RundownID)
				continue
			}
			out = append(out, rd)
		}
		return out
	}

	stale := make(map[model.SegmentID]bool, len(staleIDs))
	for _, id := range staleIDs {
		stale[id] = true
	}

	var out []model.INewsRundown
	for _, rr := range resolved.Rundowns {
		if w.skipCacheForRundown[rr.RundownID] {
			delete(w.skipCacheForRundown, rr.RundownID)
			continue
		}
		var staleInRundown []model.SegmentID
		for _, sid := range rr.SegmentIDs {
			if stale[sid] {
				staleInRundown = append(staleInRundown, sid)
			}
		}
		cpEntries, err := w.cp.GetSegmentsCacheByID(ctx, rr.RundownID, staleInRundown)
		if err != nil || len(cpEntries) == 0 {
			continue
		}
		rd := model.INewsRundown{RundownID: rr.RundownID}
		for _, sid := range rr.SegmentIDs {
			if entry, ok := cpEntries[sid]; ok {
				rd.Segments = append(rd.Segments, model.RundownSegment{
					SegmentID: sid,
					Locator:   entry.Locator,
					Modified:  entry.Modified,
				})
			}
		}
		out = append(out, rd)
	}
	return out
}

// buildNewRundowns projects the resolved playlist plus cached story data
// into the differ's INewsRundown shape, stamping each rundown with the
// listing's gatewayVersion. It does no version filtering itself: pollQueue
// has already returned early for a listing whose gatewayVersion does not
// match this gateway's configured version (the invariant in spec.md §3).
func (w *Watcher) buildNewRundowns(resolved model.ResolvedPlaylist, gatewayVersion string) []model.INewsRundown {
	out := make([]model.INewsRundown, 0, len(resolved.Rundowns))
	for _, rr := range resolved.Rundowns {
		rd := model.INewsRundown{
			RundownID:      rr.RundownID,
			GatewayVersion: gatewayVersion,
			BackTime:       rr.BackTime,
		}
		for _, sid := range rr.SegmentIDs {
			story, ok := w.iNewsDataCache[sid]
			if !ok {
				continue
			}
			rd.Segments = append(rd.Segments, model.RundownSegment{
				SegmentID: sid,
				Name:      story.Name,
				Modified:  story.Modified,
				Locator:   story.Locator,
			})
		}
		out = append(out, rd)
	}
	return out
}

// assignRanks runs the rank assigner for every resolved rundown.
func (w *Watcher) assignRanks(playlistID model.PlaylistID, resolved model.ResolvedPlaylist) map[model.RundownID]rank.RundownRanking {
	out := make(map[model.RundownID]rank.RundownRanking, len(resolved.Rundowns))
	for _, rr := range resolved.Rundowns {
		ranking := w.rankAsn.Assign(rr.RundownID, rr.SegmentIDs, w.previousRanks[rr.RundownID], w.lastForcedRebase[rr.RundownID])
		out[rr.RundownID] = ranking
	}
	return out
}

// commitCaches atomically updates every remaining cache once a poll has
// succeeded, per step 10 of spec.md §4.5.
func (w *Watcher) commitCaches(playlistID model.PlaylistID, resolved model.ResolvedPlaylist, newRundowns []model.INewsRundown, rankings map[model.RundownID]rank.RundownRanking) {
	var rundownIDs []model.RundownID
	for _, rr := range resolved.Rundowns {
		rundownIDs = append(rundownIDs, rr.RundownID)
		w.rundowns[rr.RundownID] = append([]model.SegmentID(nil), rr.SegmentIDs...)

		ranking := rankings[rr.RundownID]
		if ranking.RecalculatedAsIntegers {
			w.lastForcedRebase[rr.RundownID] = time.Now()
		}

		ranks := w.previousRanks[rr.RundownID]
		if ranks == nil {
			ranks = make(map[model.SegmentID]*big.Rat, len(rr.SegmentIDs))
		}
		for id, r := range ranking.Assigned {
			ranks[id] = r
		}
		// drop ranks for segments no longer in this rundown
		for id := range ranks {
			if !containsSegment(rr.SegmentIDs, id) {
				delete(ranks, id)
			}
		}
		w.previousRanks[rr.RundownID] = ranks

		for _, sid := range rr.SegmentIDs {
			story, ok := w.iNewsDataCache[sid]
			if !ok {
				continue
			}
			w.segments[sid] = model.ReducedSegment{
				SegmentID: sid,
				Name:      story.Name,
				Modified:  story.Modified,
				Locator:   story.Locator,
				Rank:      ranks[sid],
			}
		}
	}
	w.playlists[playlistID] = rundownIDs
	w.cachedPlaylistAssignments[playlistID] = resolved
	w.cachedAssignedRundowns[playlistID] = newRundowns
}

// enrichRundownRanks stamps each segment's effective rank (its freshly
// assigned rank, or its unchanged prior rank if it was an LCS anchor) onto
// the new rundown snapshots before they are diffed and emitted, so create
// and update payloads carry ranks inline per spec.md §4.4.
func (w *Watcher) enrichRundownRanks(newRundowns []model.INewsRundown, rankings map[model.RundownID]rank.RundownRanking) {
	for i := range newRundowns {
		rd := &newRundowns[i]
		ranking := rankings[rd.RundownID]
		prior := w.previousRanks[rd.RundownID]
		for j := range rd.Segments {
			seg := &rd.Segments[j]
			if r, ok := ranking.Assigned[seg.SegmentID]; ok {
				seg.Rank = r
			} else if prior != nil {
				seg.Rank = prior[seg.SegmentID]
			}
			if seg.Rank == nil {
				w.log.Warn(ErrRankAssignmentFailure.Error(), "rundown", rd.RundownID, "segment", seg.SegmentID)
				seg.Rank = big.NewRat(0, 1)
			}
		}
	}
}

// emitChanges walks a ChangeSet in its already-correct emission order
// (spec.md §4.4) and fires the corresponding EventSink calls. Segments
// whose only change is a rank-preserving reorder (differ.SegmentMoved) are
// never emitted individually; instead every rundown not already covered by
// a whole-rundown create/update gets at most one coalesced
// SegmentRanksUpdate carrying the Rank Assigner's output for whichever
// segments were not already announced via a create or update event.
func (w *Watcher) emitChanges(changes differ.ChangeSet, rankings map[model.RundownID]rank.RundownRanking) {
	coveredByRundownEvent := make(map[model.RundownID]bool)

	for _, rc := range changes.RundownChanges {
		if rc.Kind == differ.RundownDeleted {
			w.sink.RundownDelete(rc.RundownID)
		}
	}

	// SegmentDeleted is step 1 of §4.4's emission order: it always fires,
	// even for a rundown that also gets a create/update below.
	for _, sc := range changes.SegmentChanges {
		if sc.Kind == differ.SegmentDeleted {
			w.sink.SegmentDelete(sc.RundownID, sc.SegmentID)
		}
	}

	for _, rc := range changes.RundownChanges {
		switch rc.Kind {
		case differ.RundownCreated:
			w.sink.RundownCreate(rc.RundownID, rc.Rundown)
			coveredByRundownEvent[rc.RundownID] = true
		case differ.RundownUpdated:
			w.sink.RundownUpdate(rc.RundownID, rc.Rundown)
			coveredByRundownEvent[rc.RundownID] = true
		}
	}

	emitted := make(map[model.RundownID]map[model.SegmentID]bool)
	markEmitted := func(rid model.RundownID, sid model.SegmentID) {
		if emitted[rid] == nil {
			emitted[rid] = make(map[model.SegmentID]bool)
		}
		emitted[rid][sid] = true
	}

	for _, sc := range changes.SegmentChanges {
		if sc.Kind == differ.SegmentDeleted {
			continue // already emitted above
		}
		if coveredByRundownEvent[sc.RundownID] {
			markEmitted(sc.RundownID, sc.SegmentID)
			continue
		}
		switch sc.Kind {
		case differ.SegmentCreated:
			w.sink.SegmentCreate(sc.RundownID, sc.SegmentID, sc.Segment)
			markEmitted(sc.RundownID, sc.SegmentID)
		case differ.SegmentChanged:
			w.sink.SegmentUpdate(sc.RundownID, sc.SegmentID, sc.Segment)
			markEmitted(sc.RundownID, sc.SegmentID)
		case differ.SegmentMoved:
			// folded into the coalesced ranks update below
		}
	}

	for rundownID, ranking := range rankings {
		if coveredByRundownEvent[rundownID] || len(ranking.Assigned) == 0 {
			continue
		}
		remaining := make(map[model.SegmentID]*big.Rat, len(ranking.Assigned))
		for sid, r := range ranking.Assigned {
			if emitted[rundownID][sid] {
				continue
			}
			remaining[sid] = r
		}
		if len(remaining) > 0 {
			w.sink.SegmentRanksUpdate(rundownID, remaining)
		}
	}
}

func containsSegment(ids []model.SegmentID, target model.SegmentID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
