package ml

import (
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avalanche-predictor/internal/features"
)

func TestArtifact_SaveLoad(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxEpochs = 3
	trained, err := Train(separableSamples(100, rand.New(rand.NewSource(1))), unitScaler(), cfg, rand.New(rand.NewSource(1)), clockwork.NewFakeClock(), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "models", "model.json")
	require.NoError(t, trained.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, trained.ID, loaded.ID)
	assert.True(t, trained.CreatedAt.Equal(loaded.CreatedAt))
	assert.Equal(t, trained.Scaler, loaded.Scaler)
	assert.Equal(t, trained.Layers, loaded.Layers)
	assert.Equal(t, trained.Diagnostics.Epochs, loaded.Diagnostics.Epochs)

	records := []features.RawRecord{rawRecord(0.5, 3, true)}
	want, err := Predict(trained, records)
	require.NoError(t, err)
	got, err := Predict(loaded, records)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestArtifact_SaveUnloaded(t *testing.T) {
	var notLoaded *ModelNotLoadedError
	err := (&ModelArtifact{}).Save(filepath.Join(t.TempDir(), "model.json"))
	assert.True(t, errors.As(err, &notLoaded))
}

func TestLoadArtifact_Failures(t *testing.T) {
	valid := testArtifact(t, fitRecords())
	dir := t.TempDir()
	validPath := filepath.Join(dir, "valid.json")
	require.NoError(t, valid.Save(validPath))

	rewrite := func(name string, mutate func(m map[string]any)) string {
		data, err := os.ReadFile(validPath)
		require.NoError(t, err)
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		mutate(m)
		out, err := json.Marshal(m)
		require.NoError(t, err)
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, out, 0o600))
		return p
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "absent.json")},
		{"corrupt json", corrupt},
		{"wrong format", rewrite("format.json", func(m map[string]any) { m["format"] = 99 })},
		{"reordered features", rewrite("features.json", func(m map[string]any) {
			f := m["features"].([]any)
			f[0], f[1] = f[1], f[0]
		})},
		{"missing scaler", rewrite("scaler.json", func(m map[string]any) { delete(m, "scaler") })},
		{"no layers", rewrite("layers.json", func(m map[string]any) { m["layers"] = []any{} })},
		{"no id", rewrite("id.json", func(m map[string]any) { m["id"] = "" })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadArtifact(tt.path)
			var notLoaded *ModelNotLoadedError
			require.True(t, errors.As(err, &notLoaded), "got %v", err)
			assert.Equal(t, tt.path, notLoaded.Path)
		})
	}

	_, err := LoadArtifact(filepath.Join(dir, "absent.json"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestArtifactInit_RejectsNonFiniteBias(t *testing.T) {
	a := testArtifact(t, fitRecords())
	a.Format = artifactFormat
	a.Features = featureNames()
	require.NoError(t, a.init())

	a.Layers[len(a.Layers)-1].Biases[0] = math.NaN()

	err := a.init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-finite bias")
}
