package watcher

import (
	"math/big"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
)

// StatusCode is reported to the control plane after each poll, per
// spec.md §4.5 and §6.2.
type StatusCode string

const (
	StatusGood         StatusCode = "GOOD"
	StatusWarningMinor StatusCode = "WARNING_MINOR"
	StatusWarningMajor StatusCode = "WARNING_MAJOR"
)

// EventSink receives the watcher's outbound event stream (spec.md §4.5). A
// listener must not call back into a mutating Watcher method (e.g.
// ResyncRundown) from within a sink method without itself acquiring the
// processing lock through the normal public API — the same rule spec.md §5
// states for the resyncRundown path.
type EventSink interface {
	Info(msg string, fields map[string]any)
	Warning(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)

	RundownCreate(rundownID model.RundownID, rundown model.INewsRundown)
	RundownUpdate(rundownID model.RundownID, rundown model.INewsRundown)
	RundownDelete(rundownID model.RundownID)

	SegmentCreate(rundownID model.RundownID, segmentID model.SegmentID, segment model.RundownSegment)
	SegmentUpdate(rundownID model.RundownID, segmentID model.SegmentID, segment model.RundownSegment)
	SegmentDelete(rundownID model.RundownID, segmentID model.SegmentID)

	SegmentRanksUpdate(rundownID model.RundownID, ranks map[model.SegmentID]*big.Rat)
}

// NopEventSink discards every event. Useful as a base to embed for tests
// or sinks that only care about a subset of events.
type NopEventSink struct{}

func (NopEventSink) Info(string, map[string]any)    {}
func (NopEventSink) Warning(string, map[string]any) {}
func (NopEventSink) Error(string, map[string]any)   {}

func (NopEventSink) RundownCreate(model.RundownID, model.INewsRundown) {}
func (NopEventSink) RundownUpdate(model.RundownID, model.INewsRundown) {}
func (NopEventSink) RundownDelete(model.RundownID)                     {}

func (NopEventSink) SegmentCreate(model.RundownID, model.SegmentID, model.RundownSegment) {}
func (NopEventSink) SegmentUpdate(model.RundownID, model.SegmentID, model.RundownSegment) {}
func (NopEventSink) SegmentDelete(model.RundownID, model.SegmentID)                       {}

func (NopEventSink) SegmentRanksUpdate(model.RundownID, map[model.SegmentID]*big.Rat) {}
