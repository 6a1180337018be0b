package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"placement-predictor/internal/cfg"
	"placement-predictor/internal/metrics"
	"placement-predictor/internal/ml"
	"placement-predictor/internal/storage"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	artifacts, bolt, closeArtifacts, err := storage.OpenArtifacts(c.ArtifactBackend, c.ArtifactDir, c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Str("backend", c.ArtifactBackend).Msg("artifact store initialization failed")
	}
	defer closeArtifacts()

	svc := ml.NewService(artifacts, ml.WithMetrics(mw))

	opts := []ml.ServerOption{
		ml.WithRequestTimeout(c.RequestTimeout),
		ml.WithRequestObserver(m),
	}
	if recorder := initializeRecorder(c, bolt); recorder != nil {
		if recorder != bolt {
			defer recorder.Close()
		}
		opts = append(opts, ml.WithRecorder(recorder))
	}
	server := ml.NewModelServer(svc, c.ServerPort, opts...)

	if c.Warmup {
		warmup(ctx, svc, server, c.RequestTimeout)
	}

	var wg sync.WaitGroup
	startMetricsServer(ctx, &wg, c)
	startModelServer(ctx, &wg, server, cancel)

	waitForShutdown(ctx, cancel, &wg)
}

// setupLogging applies level and format from settings to the global logger
func setupLogging(c cfg.Settings) {
	zerolog.SetGlobalLevel(c.ZerologLevel())
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if c.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// initializeRecorder opens the prediction log if RECORD_PREDICTIONS is set.
// The bolt artifact store is reused when it is already open.
func initializeRecorder(c cfg.Settings, bolt *storage.Store) *storage.Store {
	if !c.RecordPredictions {
		return nil
	}
	if bolt != nil {
		return bolt
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without prediction log")
		return nil
	}
	return store
}

// warmup loads artifacts before accepting traffic. A failure is not fatal:
// the first request retries, and /health reports 503 until a load succeeds.
func warmup(ctx context.Context, svc *ml.Service, server *ml.ModelServer, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 10*timeout)
	defer cancel()

	if err := svc.Warmup(ctx); err != nil {
		log.Error().Err(err).Msg("artifact warm-up failed, serving degraded until a load succeeds")
		server.RequireReady(true)
		return
	}
	if b := svc.Bundle(); b != nil {
		log.Info().Str("run", b.Manifest.RunID).Msg("artifact warm-up complete")
	}
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("starting metrics server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// startModelServer runs the prediction API; a listen failure stops the process
func startModelServer(ctx context.Context, wg *sync.WaitGroup, server *ml.ModelServer, cancel context.CancelFunc) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown model server")
		}
	}()

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("model server failed")
			cancel()
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all servers stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
