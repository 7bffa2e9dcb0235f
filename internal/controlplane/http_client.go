package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
)

// HTTPClient talks to the control plane over HTTP using resty, the
// ecosystem's standard batteries-included REST client (chosen because the
// watcher, unlike the teacher's own HTTP server, is itself an HTTP client
// here and the retrieved pack has no teacher-native outbound HTTP helper).
type HTTPClient struct {
	rc             *resty.Client
	settingsPeriod time.Duration
}

// NewHTTPClient returns an HTTPClient targeting baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond)
	return &HTTPClient{rc: rc, settingsPeriod: 5 * time.Second}
}

type statusRequest struct {
	Code     StatusCode `json:"code"`
	Messages []string   `json:"messages"`
}

// SetStatus implements Client.
func (c *HTTPClient) SetStatus(ctx context.Context, code StatusCode, messages []string) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(statusRequest{Code: code, Messages: messages}).
		Post("/status")
	if err != nil {
		return fmt.Errorf("controlplane: set status: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("controlplane: set status: %s", resp.Status())
	}
	return nil
}

type cacheEntryDTO struct {
	SegmentID string    `json:"segmentId"`
	Locator   string    `json:"locator"`
	Modified  time.Time `json:"modified"`
}

// GetSegmentsCacheByID implements Client.
func (c *HTTPClient) GetSegmentsCacheByID(ctx context.Context, rundownID model.RundownID, segmentIDs []model.SegmentID) (map[model.SegmentID]RundownSegment, error) {
	if len(segmentIDs) == 0 {
		return map[model.SegmentID]RundownSegment{}, nil
	}

	ids := make([]string, len(segmentIDs))
	for i, id := range segmentIDs {
		ids[i] = string(id)
	}

	var entries []cacheEntryDTO
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParam("ids", joinComma(ids)).
		SetResult(&entries).
		Get(fmt.Sprintf("/rundowns/%s/segments/cache", rundownID))
	if err != nil {
		return nil, fmt.Errorf("controlplane: get segments cache for %s: %w", rundownID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("controlplane: get segments cache for %s: %s", rundownID, resp.Status())
	}

	out := make(map[model.SegmentID]RundownSegment, len(entries))
	for _, e := range entries {
		out[model.SegmentID(e.SegmentID)] = RundownSegment{
			SegmentID: model.SegmentID(e.SegmentID),
			Locator:   e.Locator,
			Modified:  e.Modified,
		}
	}
	return out, nil
}

type settingsDTO struct {
	Queues []struct {
		QueueID string `json:"queueId"`
		Alias   string `json:"alias"`
	} `json:"queues"`
	Debug              bool    `json:"debug"`
	PollIntervalMs     int64   `json:"pollIntervalMs"`
	GatewayVersion     string  `json:"gatewayVersion"`
	RankFractionFloor  float64 `json:"rankFractionFloor"`
	RankRebaseCooldown int64   `json:"rankRebaseCooldownMs"`
}

// Settings implements Client by polling /settings on an interval and
// pushing a DeviceSettings snapshot whenever the payload changes. This
// synthesizes the "observable peripheralDevices collection" of spec.md
// §6.2 as a plain Go channel, so the device supervisor does not need to
// know how the underlying observation mechanism works.
func (c *HTTPClient) Settings(ctx context.Context) (<-chan DeviceSettings, error) {
	out := make(chan DeviceSettings, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(c.settingsPeriod)
		defer ticker.Stop()

		var last DeviceSettings
		haveLast := false

		fetch := func() {
			var dto settingsDTO
			resp, err := c.rc.R().SetContext(ctx).SetResult(&dto).Get("/settings")
			if err != nil || resp.IsError() {
				return
			}
			ds := DeviceSettings{
				Debug:              dto.Debug,
				PollInterval:       time.Duration(dto.PollIntervalMs) * time.Millisecond,
				GatewayVersion:     dto.GatewayVersion,
				RankFractionFloor:  dto.RankFractionFloor,
				RankRebaseCooldown: time.Duration(dto.RankRebaseCooldown) * time.Millisecond,
			}
			for _, q := range dto.Queues {
				ds.Queues = append(ds.Queues, QueueConfig{QueueID: model.QueueID(q.QueueID), Alias: q.Alias})
			}
			if haveLast && settingsEqual(last, ds) {
				return
			}
			last, haveLast = ds, true
			select {
			case out <- ds:
			case <-ctx.Done():
			}
		}

		fetch()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fetch()
			}
		}
	}()
	return out, nil
}

func settingsEqual(a, b DeviceSettings) bool {
	if a.Debug != b.Debug || a.PollInterval != b.PollInterval || a.GatewayVersion != b.GatewayVersion ||
		a.RankFractionFloor != b.RankFractionFloor || a.RankRebaseCooldown != b.RankRebaseCooldown {
		return false
	}
	if len(a.Queues) != len(b.Queues) {
		return false
	}
	for i := range a.Queues {
		if a.Queues[i] != b.Queues[i] {
			return false
		}
	}
	return true
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
