package ml

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainedModel(t *testing.T) *LogisticRegression {
	t.Helper()
	features, labels := scenarioData(20)
	model := NewLogisticRegression(basicSchema())
	require.NoError(t, model.Train(features, labels))
	return model
}

func TestSaveLoadRoundTrip(t *testing.T) {
	model := trainedModel(t)
	path := filepath.Join(t.TempDir(), "models", "scalper.json")

	require.NoError(t, model.Save(path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())

	loaded, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, model.Schema(), loaded.Schema())
	assert.Equal(t, model.Rows(), loaded.Rows())

	for _, input := range [][]float64{{1, 10}, {10, 1}, {5, 5}} {
		wantLabel, wantProb, err := model.Predict(input)
		require.NoError(t, err)
		gotLabel, gotProb, err := loaded.Predict(input)
		require.NoError(t, err)
		assert.Equal(t, wantLabel, gotLabel)
		assert.InDelta(t, wantProb, gotProb, 1e-12)
	}
}

func TestSaveWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, trainedModel(t).Save(path))

	payload, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, ArtifactFormat, doc["format"])
	assert.Equal(t, float64(ArtifactVersion), doc["version"])
	assert.Equal(t, []interface{}{"num_tickets", "trades"}, doc["features"])
	assert.Equal(t, "is_scalper", doc["label"])
}

func TestSaveOverwritesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	require.NoError(t, trainedModel(t).Save(path))
	require.NoError(t, trainedModel(t).Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "model.json", entries[0].Name())

	_, err = LoadModel(path)
	require.NoError(t, err)
}

func TestSaveUntrained(t *testing.T) {
	err := NewLogisticRegression(basicSchema()).Save(filepath.Join(t.TempDir(), "m.json"))
	assert.ErrorIs(t, err, ErrNotTrained)
}

func TestLoadModelErrors(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.json")
	require.NoError(t, trainedModel(t).Save(valid))
	payload, err := os.ReadFile(valid)
	require.NoError(t, err)

	rewrite := func(name string, mutate func(doc map[string]interface{})) string {
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(payload, &doc))
		mutate(doc)
		out, err := json.Marshal(doc)
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, out, 0o600))
		return path
	}

	garbage := filepath.Join(dir, "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte{0x80, 0x04, 0x95}, 0o600))

	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "missing", path: filepath.Join(dir, "missing.json"), wantErr: ErrModelNotFound},
		{name: "not json", path: garbage, wantErr: ErrUnsupportedArtifact},
		{name: "wrong format", path: rewrite("format.json", func(d map[string]interface{}) { d["format"] = "pickle" }), wantErr: ErrUnsupportedArtifact},
		{name: "future version", path: rewrite("version.json", func(d map[string]interface{}) { d["version"] = 2 }), wantErr: ErrUnsupportedArtifact},
		{name: "weights mismatch", path: rewrite("weights.json", func(d map[string]interface{}) { d["weights"] = []float64{1} }), wantErr: ErrUnsupportedArtifact},
		{name: "no features", path: rewrite("features.json", func(d map[string]interface{}) { d["features"] = []string{} }), wantErr: ErrUnsupportedArtifact},
		{name: "zero scale", path: rewrite("scale.json", func(d map[string]interface{}) {
			d["scaler"] = map[string]interface{}{"mean": []float64{0, 0}, "scale": []float64{1, 0}}
		}), wantErr: ErrUnsupportedArtifact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadModel(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	_, err = LoadModel(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
