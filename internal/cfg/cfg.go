package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/forecast"
)

type ConfigFile struct {
	Data struct {
		DataPath       string `yaml:"dataPath"`
		DatasetPath    string `yaml:"datasetPath"`
		ObservationsDB string `yaml:"observationsDB"`
	} `yaml:"data"`

	Model struct {
		ModelPath string           `yaml:"modelPath"`
		Training  TrainingSettings `yaml:"training"`
	} `yaml:"model"`

	Forecast struct {
		URL         string `yaml:"url"`
		RESTTimeout string `yaml:"restTimeout"`
		Seasons     []int  `yaml:"seasons"`
		Regions     []int  `yaml:"regions"`
	} `yaml:"forecast"`

	Server struct {
		HTTPPort        int    `yaml:"httpPort"`
		RetrainSchedule string `yaml:"retrainSchedule"`
	} `yaml:"server"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

var defaultSeasons = []int{2017, 2018, 2019}

// Load reads settings from CONFIG_FILE when set, otherwise from the
// environment. A .env file in the working directory is applied first.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	restTimeout, err := time.ParseDuration(config.Forecast.RESTTimeout)
	if err != nil {
		restTimeout = 30 * time.Second
	}

	dataPath := getEnvOrDefault("DATA_PATH", orDefault(config.Data.DataPath, "data"))
	training := config.Model.Training
	defaults := defaultTraining()

	settings := Settings{
		DataPath:        dataPath,
		DatasetPath:     getEnvOrDefault("DATASET_PATH", orDefault(config.Data.DatasetPath, dataPath+"/dataset.csv")),
		ModelPath:       getEnvOrDefault("MODEL_PATH", orDefault(config.Model.ModelPath, dataPath+"/model.json")),
		ObservationsDB:  getEnvOrDefault("OBSERVATIONS_DB", orDefault(config.Data.ObservationsDB, dataPath+"/observations.db")),
		ForecastURL:     getEnvOrDefault("FORECAST_URL", orDefault(config.Forecast.URL, forecast.DefaultBaseURL)),
		RESTTimeout:     getDurationOrDefault("REST_TIMEOUT", restTimeout),
		Seasons:         getIntsFromEnvOrConfig("SEASONS", config.Forecast.Seasons, defaultSeasons),
		Regions:         getIntsFromEnvOrConfig("REGIONS", config.Forecast.Regions, features.DefaultRegions),
		HTTPPort:        getIntFromEnvOrConfig("HTTP_PORT", orDefault(config.Server.HTTPPort, 5000)),
		RetrainSchedule: getEnvOrDefault("RETRAIN_SCHEDULE", config.Server.RetrainSchedule),
		LogLevel:        getEnvOrDefault("LOG_LEVEL", orDefault(config.Logging.Level, "info")),
		Training: TrainingSettings{
			HiddenSize:      getIntFromEnvOrConfig("HIDDEN_SIZE", orDefault(training.HiddenSize, defaults.HiddenSize)),
			BatchSize:       getIntFromEnvOrConfig("BATCH_SIZE", orDefault(training.BatchSize, defaults.BatchSize)),
			MaxEpochs:       getIntFromEnvOrConfig("MAX_EPOCHS", orDefault(training.MaxEpochs, defaults.MaxEpochs)),
			Patience:        getIntFromEnvOrConfig("PATIENCE", orDefault(training.Patience, defaults.Patience)),
			LearningRate:    getFloatFromEnvOrConfig("LEARNING_RATE", orDefault(training.LearningRate, defaults.LearningRate)),
			ValidationSplit: getFloatFromEnvOrConfig("VALIDATION_SPLIT", orDefault(training.ValidationSplit, defaults.ValidationSplit)),
			TestSplit:       getFloatFromEnvOrConfig("TEST_SPLIT", orDefault(training.TestSplit, defaults.TestSplit)),
			Seed:            getInt64FromEnvOrConfig("SEED", orDefault(training.Seed, defaults.Seed)),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	dataPath := getEnvOrDefault("DATA_PATH", "data")
	defaults := defaultTraining()

	settings := Settings{
		DataPath:        dataPath,
		DatasetPath:     getEnvOrDefault("DATASET_PATH", dataPath+"/dataset.csv"),
		ModelPath:       getEnvOrDefault("MODEL_PATH", dataPath+"/model.json"),
		ObservationsDB:  getEnvOrDefault("OBSERVATIONS_DB", dataPath+"/observations.db"),
		ForecastURL:     getEnvOrDefault("FORECAST_URL", forecast.DefaultBaseURL),
		RESTTimeout:     getDurationOrDefault("REST_TIMEOUT", 30*time.Second),
		Seasons:         getIntsFromEnvOrConfig("SEASONS", nil, defaultSeasons),
		Regions:         getIntsFromEnvOrConfig("REGIONS", nil, features.DefaultRegions),
		HTTPPort:        getIntOrDefault("HTTP_PORT", 5000),
		RetrainSchedule: os.Getenv("RETRAIN_SCHEDULE"), // optional
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
		Training: TrainingSettings{
			HiddenSize:      getIntOrDefault("HIDDEN_SIZE", defaults.HiddenSize),
			BatchSize:       getIntOrDefault("BATCH_SIZE", defaults.BatchSize),
			MaxEpochs:       getIntOrDefault("MAX_EPOCHS", defaults.MaxEpochs),
			Patience:        getIntOrDefault("PATIENCE", defaults.Patience),
			LearningRate:    getFloatOrDefault("LEARNING_RATE", defaults.LearningRate),
			ValidationSplit: getFloatOrDefault("VALIDATION_SPLIT", defaults.ValidationSplit),
			TestSplit:       getFloatOrDefault("TEST_SPLIT", defaults.TestSplit),
			Seed:            getInt64OrDefault("SEED", defaults.Seed),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	return getIntOrDefault(key, configValue)
}

func getInt64FromEnvOrConfig(key string, configValue int64) int64 {
	return getInt64OrDefault(key, configValue)
}

func getFloatFromEnvOrConfig(key string, configValue float64) float64 {
	return getFloatOrDefault(key, configValue)
}

// getIntsFromEnvOrConfig parses a comma separated list such as "2017,2018".
// Entries that are not integers are skipped.
func getIntsFromEnvOrConfig(key string, configValues, defaults []int) []int {
	if env := os.Getenv(key); env != "" {
		var out []int
		for _, part := range strings.Split(env, ",") {
			if v, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if len(configValues) > 0 {
		return configValues
	}
	return append([]int(nil), defaults...)
}

// validateSettings performs range checks on every configured value
func validateSettings(settings *Settings) error {
	// Paths
	if settings.DataPath == "" {
		return fmt.Errorf("data path cannot be empty")
	}
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.ForecastURL == "" {
		return fmt.Errorf("forecast URL cannot be empty")
	}

	if settings.RESTTimeout < time.Second || settings.RESTTimeout > 5*time.Minute {
		return fmt.Errorf("REST timeout must be between 1s and 5m, got %v", settings.RESTTimeout)
	}

	// Seasons and regions
	if len(settings.Seasons) == 0 {
		return fmt.Errorf("at least one season must be specified")
	}
	for _, s := range settings.Seasons {
		if s < 2000 || s > 2100 {
			return fmt.Errorf("season must be between 2000 and 2100, got %d", s)
		}
	}
	if len(settings.Regions) == 0 {
		return fmt.Errorf("at least one forecast region must be specified")
	}
	for _, r := range settings.Regions {
		if r <= 0 {
			return fmt.Errorf("region id must be positive, got %d", r)
		}
	}

	if settings.HTTPPort < 1024 || settings.HTTPPort > 65535 {
		return fmt.Errorf("HTTP port must be between 1024 and 65535, got %d", settings.HTTPPort)
	}
	if settings.RetrainSchedule != "" {
		if _, err := cron.ParseStandard(settings.RetrainSchedule); err != nil {
			return fmt.Errorf("invalid retrain schedule %q: %w", settings.RetrainSchedule, err)
		}
	}
	if _, err := zerolog.ParseLevel(settings.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", settings.LogLevel)
	}

	// Training
	t := settings.Training
	if t.HiddenSize <= 0 || t.HiddenSize > 1024 {
		return fmt.Errorf("hidden size must be between 1 and 1024, got %d", t.HiddenSize)
	}
	if t.BatchSize <= 0 || t.BatchSize > 100000 {
		return fmt.Errorf("batch size must be between 1 and 100000, got %d", t.BatchSize)
	}
	if t.MaxEpochs <= 0 || t.MaxEpochs > 10000 {
		return fmt.Errorf("max epochs must be between 1 and 10000, got %d", t.MaxEpochs)
	}
	if t.Patience <= 0 || t.Patience > t.MaxEpochs {
		return fmt.Errorf("patience must be between 1 and max epochs (%d), got %d", t.MaxEpochs, t.Patience)
	}
	if t.LearningRate <= 0 || t.LearningRate > 1 {
		return fmt.Errorf("learning rate must be between 0 and 1, got %f", t.LearningRate)
	}
	if t.ValidationSplit <= 0 || t.ValidationSplit >= 0.5 {
		return fmt.Errorf("validation split must be between 0 and 0.5, got %f", t.ValidationSplit)
	}
	if t.TestSplit < 0 || t.TestSplit >= 0.5 {
		return fmt.Errorf("test split must be between 0 and 0.5, got %f", t.TestSplit)
	}

	return nil
}
