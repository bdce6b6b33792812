package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/cfg"
	"avalanche-predictor/internal/dataset"
	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/ml"
)

func main() {
	var (
		inPath      = flag.String("in", "", "Input CSV of raw records (required)")
		outPath     = flag.String("out", "", "Output CSV with predictions (default stdout)")
		modelPath   = flag.String("model", "", "Artifact to load (overrides config)")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
		skipInvalid = flag.Bool("skip-invalid", false, "Drop rows that cannot be encoded instead of failing")
	)
	flag.Parse()

	if *inPath == "" {
		fmt.Fprintln(os.Stderr, "usage: predict -in records.csv [-out predictions.csv]")
		os.Exit(2)
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if *logLevel != "" {
		c.LogLevel = *logLevel
	}
	setupLogging(c.LogLevel)
	if *modelPath != "" {
		c.ModelPath = *modelPath
	}

	artifact, err := ml.LoadArtifact(c.ModelPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load model")
	}

	f, err := os.Open(*inPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open input")
	}
	records, err := dataset.LoadCSV(f)
	f.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse input")
	}

	records, preds, err := predict(artifact, records, *skipInvalid)
	if err != nil {
		log.Fatal().Err(err).Msg("prediction failed")
	}

	var out io.Writer = os.Stdout
	if *outPath != "" {
		file, err := os.Create(*outPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create output")
		}
		defer file.Close()
		out = file
	}
	if err := dataset.WritePredictionsCSV(out, records, preds); err != nil {
		log.Fatal().Err(err).Msg("failed to write predictions")
	}

	avalanches := 0
	for _, p := range preds {
		if p.Label == ml.Avalanche {
			avalanches++
		}
	}
	log.Info().
		Str("model_id", artifact.ID).
		Int("rows", len(preds)).
		Int("avalanche", avalanches).
		Int("no_avalanche", len(preds)-avalanches).
		Msg("predictions written")

	if report := ml.Evaluate(preds, records); report.Total > 0 {
		log.Info().
			Int("labeled", report.Total).
			Float64("accuracy", report.Accuracy).
			Msg("input carried labels, evaluated predictions")
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

// predict scores the whole batch, or with skipInvalid scores rows one by one
// and drops, with a warning each, those that fail to encode.
func predict(artifact *ml.ModelArtifact, records []features.RawRecord, skipInvalid bool) ([]features.RawRecord, []ml.Prediction, error) {
	if !skipInvalid {
		preds, err := ml.Predict(artifact, records)
		return records, preds, err
	}

	var kept []features.RawRecord
	var preds []ml.Prediction
	for _, res := range ml.PredictEach(artifact, records) {
		if res.Err != nil {
			log.Warn().Err(res.Err).Int("row", res.Index).Str("key", records[res.Index].Key()).Msg("skipping row")
			continue
		}
		kept = append(kept, records[res.Index])
		preds = append(preds, res.Prediction)
	}
	return kept, preds, nil
}
