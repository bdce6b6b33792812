package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/cfg"
	"avalanche-predictor/internal/dataset"
	"avalanche-predictor/internal/forecast"
	"avalanche-predictor/internal/metrics"
	"avalanche-predictor/internal/pipeline"
	"avalanche-predictor/internal/repository"
	"avalanche-predictor/internal/storage"
)

func main() {
	var (
		seasons      = flag.String("seasons", "", "Comma-separated seasons, e.g. 2017,2018 (overrides config)")
		regions      = flag.String("regions", "", "Comma-separated region ids (overrides config)")
		observations = flag.String("observations", "", "CSV of observed avalanches to import before ingesting")
		export       = flag.String("export", "", "Also write the ingested records to this CSV")
		logLevel     = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	)
	flag.Parse()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *logLevel != "" {
		c.LogLevel = *logLevel
	}
	setupLogging(c.LogLevel)

	if *seasons != "" {
		c.Seasons = parseInts(*seasons)
	}
	if *regions != "" {
		c.Regions = parseInts(*regions)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	repo, err := repository.NewSQLiteObservationRepository(c.ObservationsDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open observation database")
	}
	defer repo.Close()

	if *observations != "" {
		importObservations(repo, *observations)
	}

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open record store")
	}
	defer store.Close()

	client := forecast.NewClient(c.ForecastURL, c.RESTTimeout)
	mw := metrics.NewWrapper(metrics.New())

	res, err := pipeline.Ingest(ctx, client, repo, store, c.Seasons, c.Regions, mw)
	if err != nil {
		log.Fatal().Err(err).Msg("ingestion failed")
	}

	total, err := store.CountRecords()
	if err != nil {
		log.Warn().Err(err).Msg("failed to count stored records")
	}
	log.Info().
		Int("ingested", len(res.Records)).
		Int("avalanches", res.Avalanches).
		Int("stored_total", total).
		Msg("records stored")

	if *export != "" {
		f, err := os.Create(*export)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create export file")
		}
		defer f.Close()
		if err := dataset.WriteCSV(f, res.Records); err != nil {
			log.Fatal().Err(err).Msg("failed to export records")
		}
		log.Info().Str("path", *export).Msg("records exported")
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

func importObservations(repo repository.ObservationRepository, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open observations")
	}
	defer f.Close()

	obs, err := repository.ParseObservationsCSV(f)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse observations")
	}
	if err := repo.SaveObservations(obs); err != nil {
		log.Fatal().Err(err).Msg("failed to save observations")
	}
	log.Info().Int("observations", len(obs)).Msg("observations imported")
}

func parseInts(s string) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			log.Fatal().Str("value", part).Msg("not an integer")
		}
		out = append(out, v)
	}
	return out
}
