// Package config loads the gateway's boot-time configuration from the
// environment, generalizing the platform config helpers into one typed
// struct loaded once at startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/andr9528/inews-ftp-gateway/internal/model"
	platformconfig "github.com/andr9528/inews-ftp-gateway/internal/platform/config"
	"github.com/andr9528/inews-ftp-gateway/internal/watcher"
)

// Config is the gateway's full boot configuration.
type Config struct {
	Queues             []watcher.QueueConfig
	PollInterval       time.Duration
	GatewayVersion     string
	Debug              bool
	RankFractionFloor  float64
	RankRebaseCooldown time.Duration

	NRCSAddr        string
	NRCSUser        string
	NRCSPass        string
	NRCSPoolSize    int
	ControlPlaneURL string
	ControlPlaneTimeout time.Duration

	HTTPPort  string
	LogLevel  string
	LogFormat string
}

// Load reads .env (if present) then the process environment, applying the
// defaults spec.md §6.1 calls for.
func Load() Config {
	_ = platformconfig.Load()

	return Config{
		Queues:              parseQueues(platformconfig.GetEnv("NRCS_QUEUES", "")),
		PollInterval:        platformconfig.GetEnvDuration("POLL_INTERVAL", 2*time.Second),
		GatewayVersion:      platformconfig.GetEnv("GATEWAY_VERSION", "1"),
		Debug:               platformconfig.GetEnvBool("DEBUG", false),
		RankFractionFloor:   platformconfig.GetEnvFloat("RANK_FRACTION_FLOOR", 1e-6),
		RankRebaseCooldown:  platformconfig.GetEnvDuration("RANK_REBASE_COOLDOWN", 30*time.Second),
		NRCSAddr:            platformconfig.GetEnv("NRCS_ADDR", "localhost:21"),
		NRCSUser:            platformconfig.GetEnv("NRCS_USER", "anonymous"),
		NRCSPass:            platformconfig.GetEnv("NRCS_PASS", ""),
		NRCSPoolSize:        platformconfig.GetEnvInt("NRCS_POOL_SIZE", 4),
		ControlPlaneURL:     platformconfig.GetEnv("CONTROL_PLANE_URL", "http://localhost:3000"),
		ControlPlaneTimeout: platformconfig.GetEnvDuration("CONTROL_PLANE_TIMEOUT", 5*time.Second),
		HTTPPort:            platformconfig.GetEnv("PORT", "8080"),
		LogLevel:            platformconfig.GetEnv("LOG_LEVEL", "info"),
		LogFormat:           platformconfig.GetEnv("LOG_FORMAT", "json"),
	}
}

// parseQueues parses a comma-separated NRCS_QUEUES env var of
// "queueId[:alias]" pairs, e.g. "SHOW.A:Morning Show,SHOW.B:Evening Show".
func parseQueues(raw string) []watcher.QueueConfig {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]watcher.QueueConfig, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		queueID, alias, hasAlias := strings.Cut(p, ":")
		if !hasAlias {
			alias = queueID
		}
		out = append(out, watcher.QueueConfig{QueueID: model.QueueID(queueID), Alias: alias})
	}
	return out
}

// Validate reports a descriptive error for any configuration that would
// make the gateway unable to start, per spec.md §7's fatal-at-init class.
func (c Config) Validate() error {
	if len(c.Queues) == 0 {
		return fmt.Errorf("config: NRCS_QUEUES must name at least one queue")
	}
	if c.NRCSAddr == "" {
		return fmt.Errorf("config: NRCS_ADDR is required")
	}
	if c.ControlPlaneURL == "" {
		return fmt.Errorf("config: CONTROL_PLANE_URL is required")
	}
	return nil
}
