package gateway

import (
	"log/slog"
	"math/big"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
	"github.com/andr9528/inews-ftp-gateway/internal/platform/metrics"
	"github.com/andr9528/inews-ftp-gateway/internal/watcher"
)

// LoggingEventSink turns every watcher event into a structured log line.
type LoggingEventSink struct {
	log *slog.Logger
}

// NewLoggingEventSink returns a LoggingEventSink writing through log.
func NewLoggingEventSink(log *slog.Logger) *LoggingEventSink {
	return &LoggingEventSink{log: log}
}

func (s *LoggingEventSink) Info(msg string, fields map[string]any) {
	s.log.Info(msg, flatten(fields)...)
}

func (s *LoggingEventSink) Warning(msg string, fields map[string]any) {
	s.log.Warn(msg, flatten(fields)...)
}

func (s *LoggingEventSink) Error(msg string, fields map[string]any) {
	s.log.Error(msg, flatten(fields)...)
}

func (s *LoggingEventSink) RundownCreate(rundownID model.RundownID, rundown model.INewsRundown) {
	s.log.Info("rundown_create", "rundown_id", rundownID, "segments", len(rundown.Segments))
}

func (s *LoggingEventSink) RundownUpdate(rundownID model.RundownID, rundown model.INewsRundown) {
	s.log.Info("rundown_update", "rundown_id", rundownID, "segments", len(rundown.Segments))
}

func (s *LoggingEventSink) RundownDelete(rundownID model.RundownID) {
	s.log.Info("rundown_delete", "rundown_id", rundownID)
}

func (s *LoggingEventSink) SegmentCreate(rundownID model.RundownID, segmentID model.SegmentID, segment model.RundownSegment) {
	s.log.Info("segment_create", "rundown_id", rundownID, "segment_id", segmentID, "locator", segment.Locator)
}

func (s *LoggingEventSink) SegmentUpdate(rundownID model.RundownID, segmentID model.SegmentID, segment model.RundownSegment) {
	s.log.Info("segment_update", "rundown_id", rundownID, "segment_id", segmentID, "locator", segment.Locator)
}

func (s *LoggingEventSink) SegmentDelete(rundownID model.RundownID, segmentID model.SegmentID) {
	s.log.Info("segment_delete", "rundown_id", rundownID, "segment_id", segmentID)
}

func (s *LoggingEventSink) SegmentRanksUpdate(rundownID model.RundownID, ranks map[model.SegmentID]*big.Rat) {
	s.log.Info("segment_ranks_update", "rundown_id", rundownID, "count", len(ranks))
}

func flatten(fields map[string]any) []any {
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

// MetricsEventSink records poll-cycle outcomes as Prometheus metrics.
// It implements only the subset of EventSink it cares about; every other
// method is a no-op via the embedded NopEventSink.
type MetricsEventSink struct {
	watcher.NopEventSink
	m *metrics.Metrics
}

// NewMetricsEventSink returns a MetricsEventSink recording into m.
func NewMetricsEventSink(m *metrics.Metrics) *MetricsEventSink {
	return &MetricsEventSink{m: m}
}

func (s *MetricsEventSink) Warning(msg string, fields map[string]any) {
	s.m.IncErrors()
}

func (s *MetricsEventSink) Error(msg string, fields map[string]any) {
	s.m.IncErrors()
}

// MultiSink fans every call out to each of its members, in order.
type MultiSink struct {
	sinks []watcher.EventSink
}

// NewMultiSink returns a MultiSink dispatching to every given sink.
func NewMultiSink(sinks ...watcher.EventSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Info(msg string, fields map[string]any) {
	for _, s := range m.sinks {
		s.Info(msg, fields)
	}
}

func (m *MultiSink) Warning(msg string, fields map[string]any) {
	for _, s := range m.sinks {
		s.Warning(msg, fields)
	}
}

func (m *MultiSink) Error(msg string, fields map[string]any) {
	for _, s := range m.sinks {
		s.Error(msg, fields)
	}
}

func (m *MultiSink) RundownCreate(rundownID model.RundownID, rundown model.INewsRundown) {
	for _, s := range m.sinks {
		s.RundownCreate(rundownID, rundown)
	}
}

func (m *MultiSink) RundownUpdate(rundownID model.RundownID, rundown model.INewsRundown) {
	for _, s := range m.sinks {
		s.RundownUpdate(rundownID, rundown)
	}
}

func (m *MultiSink) RundownDelete(rundownID model.RundownID) {
	for _, s := range m.sinks {
		s.RundownDelete(rundownID)
	}
}

func (m *MultiSink) SegmentCreate(rundownID model.RundownID, segmentID model.SegmentID, segment model.RundownSegment) {
	for _, s := range m.sinks {
		s.SegmentCreate(rundownID, segmentID, segment)
	}
}

func (m *MultiSink) SegmentUpdate(rundownID model.RundownID, segmentID model.SegmentID, segment model.RundownSegment) {
	for _, s := range m.sinks {
		s.SegmentUpdate(rundownID, segmentID, segment)
	}
}

func (m *MultiSink) SegmentDelete(rundownID model.RundownID, segmentID model.SegmentID) {
	for _, s := range m.sinks {
		s.SegmentDelete(rundownID, segmentID)
	}
}

func (m *MultiSink) SegmentRanksUpdate(rundownID model.RundownID, ranks map[model.SegmentID]*big.Rat) {
	for _, s := range m.sinks {
		s.SegmentRanksUpdate(rundownID, ranks)
	}
}
