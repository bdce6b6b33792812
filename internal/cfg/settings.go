package cfg

import (
	"time"

	"avalanche-predictor/internal/ml"
)

type Settings struct {
	DataPath        string
	DatasetPath     string
	ModelPath       string
	ObservationsDB  string
	ForecastURL     string
	RESTTimeout     time.Duration
	Seasons         []int
	Regions         []int
	HTTPPort        int
	RetrainSchedule string
	LogLevel        string
	Training        TrainingSettings
}

type TrainingSettings struct {
	HiddenSize      int     `yaml:"hiddenSize"`
	BatchSize       int     `yaml:"batchSize"`
	MaxEpochs       int     `yaml:"maxEpochs"`
	Patience        int     `yaml:"patience"`
	LearningRate    float64 `yaml:"learningRate"`
	ValidationSplit float64 `yaml:"validationSplit"`
	TestSplit       float64 `yaml:"testSplit"`
	Seed            int64   `yaml:"seed"`
}

// TrainConfig converts the training section into the trainer's configuration.
func (s Settings) TrainConfig() ml.TrainConfig {
	return ml.TrainConfig{
		HiddenSize:      s.Training.HiddenSize,
		BatchSize:       s.Training.BatchSize,
		MaxEpochs:       s.Training.MaxEpochs,
		Patience:        s.Training.Patience,
		LearningRate:    s.Training.LearningRate,
		ValidationSplit: s.Training.ValidationSplit,
		TestSplit:       s.Training.TestSplit,
	}
}

func defaultTraining() TrainingSettings {
	d := ml.DefaultTrainConfig()
	return TrainingSettings{
		HiddenSize:      d.HiddenSize,
		BatchSize:       d.BatchSize,
		MaxEpochs:       d.MaxEpochs,
		Patience:        d.Patience,
		LearningRate:    d.LearningRate,
		ValidationSplit: d.ValidationSplit,
		TestSplit:       d.TestSplit,
		Seed:            42,
	}
}
