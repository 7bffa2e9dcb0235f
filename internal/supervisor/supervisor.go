// Package supervisor owns the device's reconfigurable lifecycle: it starts
// a watcher from boot configuration, then rebuilds it wholesale whenever
// the control plane pushes new DeviceSettings, per spec.md §9's "replace,
// don't patch" design note.
package supervisor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/andr9528/inews-ftp-gateway/internal/controlplane"
	"github.com/andr9528/inews-ftp-gateway/internal/model"
	"github.com/andr9528/inews-ftp-gateway/internal/nrcs"
	"github.com/andr9528/inews-ftp-gateway/internal/watcher"
)

// Supervisor owns exactly one live *watcher.Watcher at a time. On a
// settings change it builds a brand-new Watcher with the new Config and
// swaps it in, stopping the old one (waiting for its in-flight poll) before
// starting the new one, so two watchers never poll at the same time.
type Supervisor struct {
	nrcsClient nrcs.Client
	cpClient   controlplane.Client
	sink       watcher.EventSink
	log        *slog.Logger

	mu      sync.RWMutex
	current *watcher.Watcher
	healthy bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Supervisor that will run watchers built from the
// settings observed on cpClient.Settings, starting with initial.
func New(initial watcher.Config, nrcsClient nrcs.Client, cpClient controlplane.Client, sink watcher.EventSink, log *slog.Logger) *Supervisor {
	s := &Supervisor{
		nrcsClient: nrcsClient,
		cpClient:   cpClient,
		sink:       sink,
		log:        log,
	}
	s.current = watcher.New(initial, nrcsClient, cpClient, sink, log)
	return s
}

// Start launches the initial watcher and begins observing the control
// plane's settings feed for reconfiguration.
func (s *Supervisor) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	s.current.Start(ctx)
	s.healthy = true
	s.mu.Unlock()

	settings, err := s.cpClient.Settings(ctx)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ds, ok := <-settings:
				if !ok {
					return
				}
				s.rebuild(ctx, ds)
			}
		}
	}()
	return nil
}

// rebuild constructs a new Watcher from ds and swaps it in. The old
// Watcher is stopped, and its in-flight poll finished, before the new one
// starts, so there is never more than one poll cycle running.
func (s *Supervisor) rebuild(ctx context.Context, ds controlplane.DeviceSettings) {
	s.log.Info("device settings changed, rebuilding watcher", "queues", len(ds.Queues))

	cfg := watcher.Config{
		Queues:             toWatcherQueues(ds.Queues),
		PollInterval:       ds.PollInterval,
		GatewayVersion:     ds.GatewayVersion,
		RankFractionFloor:  ds.RankFractionFloor,
		RankRebaseCooldown: ds.RankRebaseCooldown,
	}
	next := watcher.New(cfg, s.nrcsClient, s.cpClient, s.sink, s.log)

	s.mu.Lock()
	old := s.current
	s.current = next
	s.mu.Unlock()

	old.Stop()
	next.Start(ctx)
}

func toWatcherQueues(queues []controlplane.QueueConfig) []watcher.QueueConfig {
	out := make([]watcher.QueueConfig, len(queues))
	for i, q := range queues {
		out[i] = watcher.QueueConfig{QueueID: model.QueueID(q.QueueID), Alias: q.Alias}
	}
	return out
}

// ResyncRundown forwards to the currently active watcher.
func (s *Supervisor) ResyncRundown(rundownID model.RundownID) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	cur.ResyncRundown(rundownID)
}

// Healthy reports whether a watcher is currently running.
func (s *Supervisor) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// Stop halts the active watcher and the settings-observation goroutine.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	cur.Stop()
	s.wg.Wait()

	s.mu.Lock()
	s.healthy = false
	s.mu.Unlock()
}
