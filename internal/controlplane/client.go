// Package controlplane defines the interface the watcher loop uses to talk
// to the downstream playout control plane, plus an HTTP implementation.
package controlplane

import (
	"context"
	"time"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
)

// RundownSegment is the control plane's view of a previously-ingested
// segment, used to seed a synthetic diff baseline on cold start so the
// first poll after a restart does not re-announce segments the control
// plane already has.
type RundownSegment struct {
	SegmentID model.SegmentID
	Locator   string
	Modified  time.Time
}

// QueueConfig is one entry of the observable peripheral-device queue list.
type QueueConfig struct {
	QueueID model.QueueID
	Alias   string
}

// DeviceSettings is a snapshot of the reconfigurable options this gateway
// device exposes, delivered over the Settings channel whenever an operator
// changes them in the control plane.
type DeviceSettings struct {
	Queues             []QueueConfig
	Debug              bool
	PollInterval       time.Duration
	GatewayVersion     string
	RankFractionFloor  float64
	RankRebaseCooldown time.Duration
}

// Client is the control-plane adapter contract consumed by the watcher
// loop and the device supervisor.
type Client interface {
	// SetStatus reports this device's health after each poll.
	SetStatus(ctx context.Context, code StatusCode, messages []string) error

	// GetSegmentsCacheByID returns whichever of segmentIDs the control
	// plane already has ingested for rundownID. Missing entries mean the
	// control plane has never seen that segment.
	GetSegmentsCacheByID(ctx context.Context, rundownID model.RundownID, segmentIDs []model.SegmentID) (map[model.SegmentID]RundownSegment, error)

	// Settings returns a channel of device settings snapshots: the
	// "observable peripheralDevices collection" of spec.md §6.2. The
	// channel is closed when ctx is done.
	Settings(ctx context.Context) (<-chan DeviceSettings, error)
}

// StatusCode mirrors watcher.StatusCode; it is redeclared here so this
// package has no dependency on internal/watcher (which itself depends on
// this package for the Client interface).
type StatusCode string

const (
	StatusGood         StatusCode = "GOOD"
	StatusWarningMinor StatusCode = "WARNING_MINOR"
	StatusWarningMajor StatusCode = "WARNING_MAJOR"
)
