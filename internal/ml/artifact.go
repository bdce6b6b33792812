package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"avalanche-predictor/internal/features"
)

// artifactFormat is bumped whenever the stored layout changes.
const artifactFormat = 1

// ModelArtifact pairs the trained network with the scaler its inputs were
// produced with. It is immutable once built; retraining produces a new one.
type ModelArtifact struct {
	Format      int                 `json:"format"`
	ID          string              `json:"id"`
	CreatedAt   time.Time           `json:"created_at"`
	Features    []string            `json:"features"`
	Layers      []LayerParams       `json:"layers"`
	Scaler      ScalerParams        `json:"scaler"`
	Diagnostics TrainingDiagnostics `json:"diagnostics"`

	net *network
}

// Loaded reports whether the artifact holds a usable network.
func (a *ModelArtifact) Loaded() bool {
	return a != nil && a.net != nil
}

// Save writes the artifact as JSON. The file is replaced atomically so a
// concurrent Load never sees a partial write.
func (a *ModelArtifact) Save(path string) error {
	if !a.Loaded() {
		return &ModelNotLoadedError{Path: path}
	}

	stored := *a
	stored.Format = artifactFormat
	stored.Features = featureNames()
	data, err := json.MarshalIndent(&stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// LoadArtifact reads and validates an artifact. Any failure, including a
// missing file, is reported as *ModelNotLoadedError.
func LoadArtifact(path string) (*ModelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ModelNotLoadedError{Path: path, Err: err}
	}

	var a ModelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &ModelNotLoadedError{Path: path, Err: fmt.Errorf("decode artifact: %w", err)}
	}
	if err := a.init(); err != nil {
		return nil, &ModelNotLoadedError{Path: path, Err: err}
	}
	return &a, nil
}

// init validates the decoded fields and rebuilds the network.
func (a *ModelArtifact) init() error {
	if a.Format != artifactFormat {
		return fmt.Errorf("unsupported artifact format %d", a.Format)
	}
	names := featureNames()
	if len(a.Features) != len(names) {
		return fmt.Errorf("artifact has %d features, want %d", len(a.Features), len(names))
	}
	for i, name := range names {
		if a.Features[i] != name {
			return fmt.Errorf("artifact feature %d is %q, want %q", i, a.Features[i], name)
		}
	}
	if err := a.Scaler.Validate(); err != nil {
		return err
	}
	if a.ID == "" {
		return errors.New("artifact has no id")
	}

	net, err := networkFromParams(a.Layers)
	if err != nil {
		return err
	}
	a.net = net
	return nil
}

func featureNames() []string {
	return append([]string(nil), features.FeatureNames[:]...)
}
