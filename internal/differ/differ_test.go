package differ

import (
	"testing"
	"time"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
)

func seg(id, locator string) model.RundownSegment {
	return model.RundownSegment{SegmentID: model.SegmentID(id), Locator: locator}
}

func rundown(id string, segs ...model.RundownSegment) model.INewsRundown {
	return model.INewsRundown{RundownID: model.RundownID(id), Segments: segs}
}

func TestDiff_coldStart_allCreated(t *testing.T) {
	new_ := []model.INewsRundown{rundown("Q_1", seg("A", "l1"), seg("B", "l1"), seg("C", "l1"))}
	cs := Diff(new_, nil)

	if len(cs.RundownChanges) != 1 || cs.RundownChanges[0].Kind != RundownCreated {
		t.Fatalf("expected one RundownCreated, got %+v", cs.RundownChanges)
	}
	if len(cs.SegmentChanges) != 0 {
		t.Errorf("a rundown create should carry full segments, no separate segment events: %+v", cs.SegmentChanges)
	}
}

func TestDiff_idempotent_noChanges(t *testing.T) {
	rd := rundown("Q_1", seg("A", "l1"), seg("B", "l1"))
	cs := Diff([]model.INewsRundown{rd}, []model.INewsRundown{rd})

	if len(cs.RundownChanges) != 0 || len(cs.SegmentChanges) != 0 {
		t.Errorf("polling identical state twice should produce no changes, got %+v / %+v", cs.RundownChanges, cs.SegmentChanges)
	}
}

func TestDiff_segmentChanged_locatorDiffers(t *testing.T) {
	old := []model.INewsRundown{rundown("Q_1", seg("A", "l1"), seg("B", "l1"))}
	new_ := []model.INewsRundown{rundown("Q_1", seg("A", "l1"), seg("B", "l2"))}
	cs := Diff(new_, old)

	if len(cs.RundownChanges) != 0 {
		t.Errorf("a single segment body change does not update the rundown: %+v", cs.RundownChanges)
	}
	if len(cs.SegmentChanges) != 1 || cs.SegmentChanges[0].Kind != SegmentChanged || cs.SegmentChanges[0].SegmentID != "B" {
		t.Errorf("expected SegmentChanged for B, got %+v", cs.SegmentChanges)
	}
}

func TestDiff_insertSegment(t *testing.T) {
	old := []model.INewsRundown{rundown("Q_1", seg("A", "l1"), seg("B", "l1"))}
	new_ := []model.INewsRundown{rundown("Q_1", seg("A", "l1"), seg("D", "l1"), seg("B", "l1"))}
	cs := Diff(new_, old)

	if len(cs.RundownChanges) != 0 {
		t.Errorf("inserting a segment without reordering existing ones should not update the rundown: %+v", cs.RundownChanges)
	}
	if len(cs.SegmentChanges) != 1 || cs.SegmentChanges[0].Kind != SegmentCreated || cs.SegmentChanges[0].SegmentID != "D" {
		t.Errorf("expected SegmentCreated for D, got %+v", cs.SegmentChanges)
	}
}

func TestDiff_moveSegment(t *testing.T) {
	old := []model.INewsRundown{rundown("Q_1", seg("A", "l1"), seg("B", "l1"), seg("C", "l1"))}
	new_ := []model.INewsRundown{rundown("Q_1", seg("C", "l1"), seg("A", "l1"), seg("B", "l1"))}
	cs := Diff(new_, old)

	found := false
	for _, c := range cs.SegmentChanges {
		if c.SegmentID == "C" {
			found = true
			if c.Kind != SegmentMoved {
				t.Errorf("expected C to be classified Moved, got %v", c.Kind)
			}
		}
	}
	if !found {
		t.Error("expected a change entry for C")
	}
}

func TestDiff_boundaryMarkerSplitsRundown(t *testing.T) {
	old := []model.INewsRundown{rundown("Q_1", seg("A", "l1"), seg("B", "l1"), seg("D", "l1"))}
	new_ := []model.INewsRundown{
		rundown("Q_1", seg("A", "l1")),
		rundown("Q_2", seg("B", "l1"), seg("D", "l1")),
	}
	cs := Diff(new_, old)

	var gotCreate bool
	for _, c := range cs.RundownChanges {
		if c.Kind == RundownCreated && c.RundownID == "Q_2" {
			gotCreate = true
		}
		if c.Kind == RundownDeleted {
			t.Errorf("Q_1 still exists (now with fewer segments), should not be Deleted: %+v", c)
		}
	}
	if !gotCreate {
		t.Fatal("expected RundownCreated for Q_2")
	}

	deleted := map[model.SegmentID]bool{}
	for _, c := range cs.SegmentChanges {
		if c.Kind == SegmentDeleted {
			deleted[c.SegmentID] = true
		}
		if c.Kind == SegmentCreated && (c.SegmentID == "B" || c.SegmentID == "D") {
			t.Errorf("B and D are covered by Q_2's rundown create, should not also get a segment create: %+v", c)
		}
	}
	if !deleted["B"] || !deleted["D"] {
		t.Errorf("expected B and D to be deleted from Q_1, got %+v", deleted)
	}
}

func TestDiff_rundownDeleted(t *testing.T) {
	old := []model.INewsRundown{
		rundown("Q_1", seg("A", "l1")),
		rundown("Q_2", seg("B", "l1")),
	}
	new_ := []model.INewsRundown{rundown("Q_1", seg("A", "l1"))}
	cs := Diff(new_, old)

	if len(cs.RundownChanges) != 1 || cs.RundownChanges[0].Kind != RundownDeleted || cs.RundownChanges[0].RundownID != "Q_2" {
		t.Fatalf("expected RundownDeleted for Q_2, got %+v", cs.RundownChanges)
	}
	if len(cs.SegmentChanges) != 1 || cs.SegmentChanges[0].SegmentID != "B" || cs.SegmentChanges[0].Kind != SegmentDeleted {
		t.Fatalf("expected SegmentDeleted for B, got %+v", cs.SegmentChanges)
	}
}

func TestDiff_backTimeOnlyChange_rundownUpdated(t *testing.T) {
	t1 := time.Now()
	t2 := t1.Add(time.Minute)
	old := []model.INewsRundown{{RundownID: "Q_1", BackTime: &t1, Segments: []model.RundownSegment{seg("A", "l1")}}}
	new_ := []model.INewsRundown{{RundownID: "Q_1", BackTime: &t2, Segments: []model.RundownSegment{seg("A", "l1")}}}
	cs := Diff(new_, old)

	if len(cs.RundownChanges) != 1 || cs.RundownChanges[0].Kind != RundownUpdated {
		t.Fatalf("expected RundownUpdated for a backTime-only shift, got %+v", cs.RundownChanges)
	}
}

func TestDiff_emptyQueue_oneEmptyRundown(t *testing.T) {
	new_ := []model.INewsRundown{rundown("Q_1")}
	cs := Diff(new_, nil)

	if len(cs.RundownChanges) != 1 || cs.RundownChanges[0].Kind != RundownCreated {
		t.Fatalf("expected one RundownCreated for the empty rundown, got %+v", cs.RundownChanges)
	}
	if len(cs.RundownChanges[0].Rundown.Segments) != 0 {
		t.Errorf("expected zero segments, got %+v", cs.RundownChanges[0].Rundown.Segments)
	}
}
