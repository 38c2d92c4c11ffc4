// Package main runs the pump.fun token-creation monitor: upstream log
// subscription, event pipeline and the subscriber WebSocket server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/DivineUX23/pump-fun-monitor/internal/config"
	"github.com/DivineUX23/pump-fun-monitor/internal/hub"
	"github.com/DivineUX23/pump-fun-monitor/internal/observability"
	"github.com/DivineUX23/pump-fun-monitor/internal/pipeline"
	"github.com/DivineUX23/pump-fun-monitor/internal/server"
	"github.com/DivineUX23/pump-fun-monitor/internal/solana"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Error("configuration error")
		return 1
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Error("configuration error")
		return 1
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	logger := log.WithField("service", "pump-fun-monitor")
	logger.Infof("starting monitor for program %s", cfg.ProgramID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infof("received signal %v, shutting down", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Errorf("received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	rpc := solana.NewHTTPClient(cfg.UpstreamHTTPURL)

	wsLog := log.WithField("component", "ws")
	stream := solana.NewLogStreamClient(cfg.UpstreamWSSURL, cfg.ProgramID, nil, wsLog)
	stream.OnStateChange = func(s solana.ConnState) {
		observability.SetUpstreamState(s.String())
	}

	h := hub.New(hub.DefaultCapacity)

	pipe := pipeline.New(rpc, h, pipeline.Config{
		ProgramID:      cfg.ProgramID,
		VerifyReserves: cfg.VerifyReserves,
	}, log.WithField("component", "pipeline"))

	srv := server.New(cfg.ServerPort, h, log.WithField("component", "server"))

	errCh := make(chan error, 3)

	go func() {
		errCh <- stream.Run(ctx)
	}()

	go func() {
		errCh <- pipe.Run(ctx, stream.Notifications())
	}()

	go func() {
		errCh <- srv.Run(ctx)
	}()

	code := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("component failed")
			code = 1
		}
	}
	cancel()

	// Sessions observe end-of-stream through the hub and close.
	h.Close()

	// Give the components a moment to unsubscribe and drain.
	for i := 0; i < 2; i++ {
		select {
		case <-errCh:
		case <-time.After(10 * time.Second):
			logger.Warn("component did not stop in time")
			return code
		}
	}

	logger.Info("shutdown complete")
	return code
}

// serveMetrics exposes Prometheus metrics and a liveness probe on a
// listener separate from the subscriber port.
func serveMetrics(addr string, logger *log.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	logger.Infof("metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Warn("metrics server error")
	}
}
