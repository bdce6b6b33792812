package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu             sync.Mutex
	epochs         int
	validationLoss []float64
	testLoss       float64
	testAccuracy   float64
	durations      []float64
	predictions    map[string]int
	latencies      []float64
	clamped        int
	encodingErrors int
	artifactAge    float64
}

func (m *MockMetrics) TrainingEpochInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.epochs++
}

func (m *MockMetrics) ValidationLossSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validationLoss = append(m.validationLoss, v)
}

func (m *MockMetrics) TestLossSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.testLoss = v
}

func (m *MockMetrics) TestAccuracySet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.testAccuracy = v
}

func (m *MockMetrics) TrainingDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations = append(m.durations, v)
}

func (m *MockMetrics) PredictionInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.predictions == nil {
		m.predictions = make(map[string]int)
	}
	m.predictions[label]++
}

func (m *MockMetrics) PredictionLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, v)
}

func (m *MockMetrics) ClampedValuesAdd(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clamped += n
}

func (m *MockMetrics) EncodingErrorInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encodingErrors++
}

func (m *MockMetrics) ArtifactAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifactAge = v
}

// Epochs returns the number of completed training epochs.
func (m *MockMetrics) Epochs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epochs
}

// Predictions returns the prediction count for a label.
func (m *MockMetrics) Predictions(label string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions[label]
}

// Clamped returns the total number of clamped feature values.
func (m *MockMetrics) Clamped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clamped
}

// EncodingErrors returns the number of rejected records.
func (m *MockMetrics) EncodingErrors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.encodingErrors
}

// ArtifactAge returns the last reported artifact age in seconds.
func (m *MockMetrics) ArtifactAge() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifactAge
}
