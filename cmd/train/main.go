package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/cfg"
	"avalanche-predictor/internal/dataset"
	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/pipeline"
	"avalanche-predictor/internal/storage"
)

func main() {
	var (
		csvPath   = flag.String("csv", "", "Train from this CSV instead of the record store")
		modelPath = flag.String("model", "", "Where to write the artifact (overrides config)")
		logLevel  = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
		seed      = flag.Int64("seed", 0, "Random seed (overrides config)")
		epochs    = flag.Int("epochs", 0, "Maximum epochs (overrides config)")
		jsonOut   = flag.Bool("json", false, "Print the training diagnostics as JSON")
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

	if *modelPath != "" {
		c.ModelPath = *modelPath
	}
	if *seed != 0 {
		c.Training.Seed = *seed
	}
	trainCfg := c.TrainConfig()
	if *epochs > 0 {
		trainCfg.MaxEpochs = *epochs
	}

	records, err := loadRecords(*csvPath, c.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load records")
	}
	log.Info().Int("records", len(records)).Msg("records loaded")

	rng := rand.New(rand.NewSource(c.Training.Seed))
	res, err := pipeline.Train(context.Background(), records, trainCfg, rng, clockwork.NewRealClock(), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("training failed")
	}

	if err := res.Artifact.Save(c.ModelPath); err != nil {
		log.Fatal().Err(err).Msg("failed to save artifact")
	}
	log.Info().Str("path", c.ModelPath).Str("model_id", res.Artifact.ID).Msg("artifact saved")

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Artifact.Diagnostics); err != nil {
			log.Fatal().Err(err).Msg("failed to encode diagnostics")
		}
		return
	}
	printSummary(res)
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func loadRecords(csvPath, dataPath string) ([]features.RawRecord, error) {
	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return dataset.LoadCSV(f)
	}

	store, err := storage.New(dataPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.AllRecords()
}

func printSummary(res *pipeline.TrainResult) {
	d := res.Artifact.Diagnostics
	r := res.Report

	fmt.Println("=== Training Summary ===")
	fmt.Printf("Model ID:            %s\n", res.Artifact.ID)
	fmt.Printf("Records:             %d (%d out of season)\n", res.Records, res.OutOfSeason)
	fmt.Printf("Avalanche / none:    %d / %d\n", res.Positives, res.Negatives)
	fmt.Printf("Balanced rows:       %d (train %d, validation %d, test %d)\n", res.Balanced, d.TrainRows, d.ValidationRows, d.TestRows)
	fmt.Printf("Epochs:              %d (best %d, stopped early: %t)\n", d.Epochs, d.BestEpoch, d.StoppedEarly)
	fmt.Printf("Best val loss:       %.4f\n", d.BestValidationLoss)
	fmt.Printf("Test loss/accuracy:  %.4f / %.2f%%\n", d.TestLoss, d.TestReport.Accuracy*100)
	fmt.Printf("Full set accuracy:   %.2f%% (%d/%d)\n", r.Accuracy*100, r.Correct, r.Total)
	fmt.Printf("Confusion (TP FP TN FN): %d %d %d %d\n", r.TruePositives, r.FalsePositives, r.TrueNegatives, r.FalseNegatives)
	fmt.Printf("Mean avalanche score: %.3f when avalanche, %.3f when none\n", r.MeanScoreAvalanche, r.MeanScoreNoAvalanche)
	if len(d.Importance) > 0 {
		fmt.Println("Top features:")
		for _, fi := range d.Importance[:min(5, len(d.Importance))] {
			fmt.Printf("  %-24s %.4f\n", fi.Feature, fi.PermutationScore)
		}
	}
	fmt.Printf("Duration:            %s\n", d.Duration)
	fmt.Println("========================")
}
