package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andr9528/inews-ftp-gateway/internal/config"
	"github.com/andr9528/inews-ftp-gateway/internal/controlplane"
	"github.com/andr9528/inews-ftp-gateway/internal/gateway"
	"github.com/andr9528/inews-ftp-gateway/internal/nrcs"
	"github.com/andr9528/inews-ftp-gateway/internal/platform/logger"
	"github.com/andr9528/inews-ftp-gateway/internal/platform/metrics"
	"github.com/andr9528/inews-ftp-gateway/internal/supervisor"
	"github.com/andr9528/inews-ftp-gateway/internal/watcher"
)

const (
	shutdownTimeout = 10 * time.Second
	fatalInitGrace  = 10 * time.Second
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		time.Sleep(fatalInitGrace)
		os.Exit(1)
	}

	nrcsClient := nrcs.NewFTPClient(cfg.NRCSAddr, cfg.NRCSUser, cfg.NRCSPass, nrcs.WithPoolSize(cfg.NRCSPoolSize))
	cpClient := controlplane.NewHTTPClient(cfg.ControlPlaneURL, cfg.ControlPlaneTimeout)

	met := metrics.New()
	sink := gateway.NewMultiSink(
		gateway.NewLoggingEventSink(log),
		gateway.NewMetricsEventSink(met),
	)

	sup := supervisor.New(watcher.Config{
		Queues:             cfg.Queues,
		PollInterval:       cfg.PollInterval,
		GatewayVersion:     cfg.GatewayVersion,
		RankFractionFloor:  cfg.RankFractionFloor,
		RankRebaseCooldown: cfg.RankRebaseCooldown,
	}, nrcsClient, cpClient, sink, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := sup.Start(ctx); err != nil {
		log.Error("supervisor failed to start", "error", err)
		sup.Stop()
		time.Sleep(fatalInitGrace)
		os.Exit(1)
	}

	h := gateway.NewHandler(sup, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/healthz", h.Healthz)
	r.Get("/metrics", met.Handler(nil).ServeHTTP)
	r.Post("/queues/{queueId}/resync", h.Resync)

	addr := ":" + cfg.HTTPPort
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("gateway starting",
		"port", cfg.HTTPPort,
		"queues", len(cfg.Queues),
		"poll_interval", cfg.PollInterval,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	cancel()
	sup.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("gateway stopped")
}
