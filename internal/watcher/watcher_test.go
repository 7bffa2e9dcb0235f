package watcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/andr9528/inews-ftp-gateway/internal/controlplane"
	"github.com/andr9528/inews-ftp-gateway/internal/model"
	"github.com/andr9528/inews-ftp-gateway/internal/nrcs"
)

// fakeNRCS is an in-memory stand-in for nrcs.Client whose listing can be
// mutated between polls to simulate NRCS-side edits.
type fakeNRCS struct {
	mu       sync.Mutex
	listing  nrcs.ReducedRundown
	stories  map[model.SegmentID]model.UnrankedSegment
	failNext bool
}

func newFakeNRCS() *fakeNRCS {
	return &fakeNRCS{stories: make(map[model.SegmentID]model.UnrankedSegment)}
}

func (f *fakeNRCS) set(order []model.SegmentID, stories map[model.SegmentID]model.UnrankedSegment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stories = stories
	segs := make([]nrcs.ListedSegment, len(order))
	for i, id := range order {
		s := stories[id]
		segs[i] = nrcs.ListedSegment{SegmentID: id, Name: s.Name, Modified: s.Modified, Locator: s.Locator}
	}
	f.listing = nrcs.ReducedRundown{Segments: segs}
}

func (f *fakeNRCS) DownloadRundown(ctx context.Context, queueID model.QueueID) (nrcs.ReducedRundown, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nrcs.ReducedRundown{}, context.DeadlineExceeded
	}
	return f.listing, nil
}

func (f *fakeNRCS) FetchStoriesByID(ctx context.Context, queueID model.QueueID, ids []model.SegmentID) (map[model.SegmentID]model.UnrankedSegment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[model.SegmentID]model.UnrankedSegment, len(ids))
	for _, id := range ids {
		out[id] = f.stories[id]
	}
	return out, nil
}

func (f *fakeNRCS) QueueLength() int { return 0 }

// fakeControlPlane is a no-op control plane: no pre-existing cache, always
// accepts status reports.
type fakeControlPlane struct {
	mu       sync.Mutex
	statuses []controlplane.StatusCode
}

func (f *fakeControlPlane) SetStatus(ctx context.Context, code controlplane.StatusCode, messages []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, code)
	return nil
}

func (f *fakeControlPlane) GetSegmentsCacheByID(ctx context.Context, rundownID model.RundownID, ids []model.SegmentID) (map[model.SegmentID]controlplane.RundownSegment, error) {
	return map[model.SegmentID]controlplane.RundownSegment{}, nil
}

func (f *fakeControlPlane) Settings(ctx context.Context) (<-chan controlplane.DeviceSettings, error) {
	ch := make(chan controlplane.DeviceSettings)
	close(ch)
	return ch, nil
}

// recordingSink captures every emitted event for assertions.
type recordingSink struct {
	mu sync.Mutex
	NopEventSink
	rundownCreates []model.RundownID
	rundownUpdates []model.RundownID
	rundownDeletes []model.RundownID
	segmentCreates []model.SegmentID
	segmentUpdates []model.SegmentID
	segmentDeletes []model.SegmentID
	ranksUpdates   map[model.RundownID]map[model.SegmentID]*big.Rat
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ranksUpdates: make(map[model.RundownID]map[model.SegmentID]*big.Rat)}
}

func (s *recordingSink) RundownCreate(id model.RundownID, _ model.INewsRundown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rundownCreates = append(s.rundownCreates, id)
}
func (s *recordingSink) RundownUpdate(id model.RundownID, _ model.INewsRundown) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rundownUpdates = append(s.rundownUpdates, id)
}
func (s *recordingSink) RundownDelete(id model.RundownID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rundownDeletes = append(s.rundownDeletes, id)
}
func (s *recordingSink) SegmentCreate(_ model.RundownID, id model.SegmentID, _ model.RundownSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmentCreates = append(s.segmentCreates, id)
}
func (s *recordingSink) SegmentUpdate(_ model.RundownID, id model.SegmentID, _ model.RundownSegment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmentUpdates = append(s.segmentUpdates, id)
}
func (s *recordingSink) SegmentDelete(_ model.RundownID, id model.SegmentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segmentDeletes = append(s.segmentDeletes, id)
}
func (s *recordingSink) SegmentRanksUpdate(rid model.RundownID, ranks map[model.SegmentID]*big.Rat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ranksUpdates[rid] = ranks
}

func story(id, locator string) model.UnrankedSegment {
	return model.UnrankedSegment{
		SegmentID: model.SegmentID(id),
		Name:      string(id),
		Modified:  time.Now(),
		Locator:   locator,
		INewsStory: model.StoryPayload{
			Raw: json.RawMessage(`{}`),
		},
	}
}

func newTestWatcher(nrcsClient nrcs.Client, cp controlplane.Client, sink EventSink) *Watcher {
	cfg := Config{
		Queues:             []QueueConfig{{QueueID: "Q", Alias: "main"}},
		PollInterval:       time.Hour,
		GatewayVersion:     "",
		RankFractionFloor:  1e-6,
		RankRebaseCooldown: 30 * time.Second,
	}
	return New(cfg, nrcsClient, cp, sink, slog.Default())
}

func ids(segs ...model.UnrankedSegment) []model.SegmentID {
	out := make([]model.SegmentID, len(segs))
	for i, s := range segs {
		out[i] = s.SegmentID
	}
	return out
}

func storyMap(segs ...model.UnrankedSegment) map[model.SegmentID]model.UnrankedSegment {
	m := make(map[model.SegmentID]model.UnrankedSegment, len(segs))
	for _, s := range segs {
		m[s.SegmentID] = s
	}
	return m
}

func TestWatcher_coldStart_createsOneRundown(t *testing.T) {
	f := newFakeNRCS()
	a, b := story("A", "l1"), story("B", "l1")
	f.set(ids(a, b), storyMap(a, b))

	sink := newRecordingSink()
	w := newTestWatcher(f, &fakeControlPlane{}, sink)

	w.pollAllQueues(context.Background())

	if len(sink.rundownCreates) != 1 {
		t.Fatalf("expected one RundownCreate, got %v", sink.rundownCreates)
	}
	if len(sink.segmentCreates) != 0 {
		t.Errorf("segments in a fresh rundown should not also get segment_create events: %v", sink.segmentCreates)
	}
}

func TestWatcher_stability_noReorderNoEvents(t *testing.T) {
	f := newFakeNRCS()
	a, b := story("A", "l1"), story("B", "l1")
	f.set(ids(a, b), storyMap(a, b))

	sink := newRecordingSink()
	w := newTestWatcher(f, &fakeControlPlane{}, sink)

	w.pollAllQueues(context.Background())
	sink.rundownCreates = nil

	w.pollAllQueues(context.Background())

	if len(sink.rundownCreates) != 0 || len(sink.rundownUpdates) != 0 {
		t.Errorf("an unchanged poll must be silent, got creates=%v updates=%v", sink.rundownCreates, sink.rundownUpdates)
	}
	if len(sink.ranksUpdates) != 0 {
		t.Errorf("no reorder occurred, expected no ranks update, got %v", sink.ranksUpdates)
	}
}

func TestWatcher_insertSegment_onlyNewSegmentAnnounced(t *testing.T) {
	f := newFakeNRCS()
	a, b := story("A", "l1"), story("B", "l1")
	f.set(ids(a, b), storyMap(a, b))

	sink := newRecordingSink()
	w := newTestWatcher(f, &fakeControlPlane{}, sink)
	w.pollAllQueues(context.Background())
	sink.rundownCreates = nil

	d := story("D", "l1")
	f.set([]model.SegmentID{"A", "D", "B"}, storyMap(a, b, d))
	w.pollAllQueues(context.Background())

	if len(sink.segmentCreates) != 1 || sink.segmentCreates[0] != "D" {
		t.Fatalf("expected exactly one SegmentCreate for D, got %v", sink.segmentCreates)
	}
	if len(sink.rundownUpdates) != 0 {
		t.Errorf("inserting without reordering existing segments should not update the rundown: %v", sink.rundownUpdates)
	}
}

func TestWatcher_moveSegment_onlyMovedSegmentGetsRankUpdate(t *testing.T) {
	f := newFakeNRCS()
	a, b, c, d := story("A", "l1"), story("B", "l1"), story("C", "l1"), story("D", "l1")
	f.set(ids(a, b, c, d), storyMap(a, b, c, d))

	sink := newRecordingSink()
	w := newTestWatcher(f, &fakeControlPlane{}, sink)
	w.pollAllQueues(context.Background())

	f.set([]model.SegmentID{"C", "A", "B", "D"}, storyMap(a, b, c, d))
	w.pollAllQueues(context.Background())

	ranks, ok := w.previousRanks["Q_1"]
	if !ok {
		t.Fatal("expected cached ranks for Q_1")
	}
	if ranks["C"].Cmp(ranks["A"]) >= 0 {
		t.Errorf("expected C's rank to be lower than A's after moving to front, got C=%v A=%v", ranks["C"], ranks["A"])
	}

	update, ok := sink.ranksUpdates["Q_1"]
	if !ok {
		t.Fatal("expected a coalesced ranks update for Q_1")
	}
	if _, moved := update["C"]; !moved {
		t.Errorf("expected C in the ranks update, got %v", update)
	}
	if _, untouched := update["A"]; untouched {
		t.Errorf("A did not move and should not appear in the ranks update: %v", update)
	}
}

func TestWatcher_locatorChange_emitsSegmentUpdate(t *testing.T) {
	f := newFakeNRCS()
	a, b := story("A", "l1"), story("B", "l1")
	f.set(ids(a, b), storyMap(a, b))

	sink := newRecordingSink()
	w := newTestWatcher(f, &fakeControlPlane{}, sink)
	w.pollAllQueues(context.Background())

	b2 := story("B", "l2")
	f.set(ids(a, b2), storyMap(a, b2))
	w.pollAllQueues(context.Background())

	if len(sink.segmentUpdates) != 1 || sink.segmentUpdates[0] != "B" {
		t.Fatalf("expected one SegmentUpdate for B, got %v", sink.segmentUpdates)
	}
}

func TestWatcher_boundaryMarker_splitsIntoNewRundown(t *testing.T) {
	f := newFakeNRCS()
	a, b := story("A", "l1"), story("B", "l1")
	c := story("C", "l1")
	c.INewsStory.Raw = json.RawMessage(`{"continuity":true}`)
	f.set(ids(a, b, c), storyMap(a, b, c))

	sink := newRecordingSink()
	w := newTestWatcher(f, &fakeControlPlane{}, sink)
	w.pollAllQueues(context.Background())

	if len(sink.rundownCreates) != 2 {
		t.Fatalf("expected two rundowns from one boundary marker, got %v", sink.rundownCreates)
	}
}

func TestWatcher_gatewayVersionMismatch_queueSkipped(t *testing.T) {
	f := newFakeNRCS()
	a := story("A", "l1")
	f.set(ids(a), storyMap(a))
	f.listing.GatewayVersion = "v2"

	sink := newRecordingSink()
	w := newTestWatcher(f, &fakeControlPlane{}, sink)
	w.cfg.GatewayVersion = "v1"

	w.pollAllQueues(context.Background())

	if len(sink.rundownCreates) != 0 {
		t.Errorf("a version-mismatched rundown must be skipped entirely, got %v", sink.rundownCreates)
	}
}

func TestWatcher_resyncRundown_forcesFreshCreate(t *testing.T) {
	f := newFakeNRCS()
	a, b := story("A", "l1"), story("B", "l1")
	f.set(ids(a, b), storyMap(a, b))

	sink := newRecordingSink()
	w := newTestWatcher(f, &fakeControlPlane{}, sink)
	w.pollAllQueues(context.Background())
	sink.rundownCreates = nil

	w.ResyncRundown("Q_1")
	w.pollAllQueues(context.Background())

	if len(sink.rundownCreates) != 1 {
		t.Errorf("resync should force a fresh RundownCreate on the next poll, got %v", sink.rundownCreates)
	}
}

func TestWatcher_fetchFailure_preservesCacheAndReportsMajor(t *testing.T) {
	f := newFakeNRCS()
	a := story("A", "l1")
	f.set(ids(a), storyMap(a))

	sink := newRecordingSink()
	cp := &fakeControlPlane{}
	w := newTestWatcher(f, cp, sink)
	w.pollAllQueues(context.Background())

	f.failNext = true
	sink.rundownCreates = nil
	w.pollAllQueues(context.Background())

	if len(sink.rundownCreates) != 0 || len(sink.rundownDeletes) != 0 {
		t.Errorf("a fetch failure must not emit spurious deletes/creates: creates=%v deletes=%v", sink.rundownCreates, sink.rundownDeletes)
	}
	if _, ok := w.rundowns["Q_1"]; !ok {
		t.Error("expected the previous rundown cache to survive a failed poll")
	}

	cp.mu.Lock()
	last := cp.statuses[len(cp.statuses)-1]
	cp.mu.Unlock()
	if last != controlplane.StatusWarningMajor {
		t.Errorf("expected WARNING_MAJOR status after a fetch failure, got %v", last)
	}
}
