package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/cfg"
	"avalanche-predictor/internal/metrics"
	"avalanche-predictor/internal/ml"
	"avalanche-predictor/internal/server"
	"avalanche-predictor/internal/storage"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)
	clock := clockwork.NewRealClock()

	engine := ml.NewEngine(clock, mw)
	if err := engine.LoadFile(c.ModelPath); err != nil {
		// Serve anyway: /health reports the missing model and a scheduled
		// retrain can install one.
		log.Warn().Err(err).Msg("no model loaded, predictions unavailable until one is trained")
	}

	stopRetraining := startRetraining(ctx, c, engine, clock, mw)
	defer stopRetraining()

	srv := server.New(fmt.Sprintf(":%d", c.HTTPPort), engine, nil)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown incomplete")
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// startRetraining schedules retraining from the record store when a schedule
// is configured. The returned func waits for a running job and closes the store.
func startRetraining(ctx context.Context, c cfg.Settings, engine *ml.Engine, clock clockwork.Clock, mw *metrics.MetricsWrapper) func() {
	if c.RetrainSchedule == "" {
		log.Info().Msg("scheduled retraining disabled")
		return func() {}
	}

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, scheduled retraining disabled")
		return func() {}
	}

	retrainer := server.NewRetrainer(store, engine, c.ModelPath, c.TrainConfig(), c.Training.Seed, clock, mw)
	scheduler, err := retrainer.Schedule(ctx, c.RetrainSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to schedule retraining")
	}
	scheduler.Start()
	log.Info().Str("schedule", c.RetrainSchedule).Msg("scheduled retraining enabled")

	return func() {
		<-scheduler.Stop().Done()
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close storage")
		}
	}
}

// waitForShutdown blocks until a shutdown signal arrives or ctx is canceled.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc) {
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
}
