package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
)

const (
	ArtifactFormat  = "scalpguard/logreg"
	ArtifactVersion = 1
)

// artifact is the on-disk model document. The header fields (format,
// version, features, label) let a loader reject models trained on a
// different schema instead of silently misreading them.
type artifact struct {
	Format    string    `json:"format"`
	Version   int       `json:"version"`
	Features  []string  `json:"features"`
	Label     string    `json:"label"`
	Scaler    Scaler    `json:"scaler"`
	Weights   []float64 `json:"weights"`
	Bias      float64   `json:"bias"`
	Rows      int       `json:"rows"`
	TrainedAt time.Time `json:"trained_at"`
}

// LoadModel reads a model artifact from path.
func LoadModel(path string) (*LogisticRegression, error) {
	model := &LogisticRegression{}
	if err := model.Load(path); err != nil {
		return nil, err
	}
	return model, nil
}

// Save writes the model to path, replacing any existing file. The document
// is written to a temporary file in the same directory and renamed into
// place, so readers never observe a partial artifact.
func (m *LogisticRegression) Save(path string) error {
	if !m.Trained() {
		return ErrNotTrained
	}
	if m.schema.Arity() != len(m.weights) {
		return fmt.Errorf("%w: schema lists %d features, model has %d weights", ErrSchemaMismatch, m.schema.Arity(), len(m.weights))
	}
	payload, err := json.MarshalIndent(artifact{
		Format:    ArtifactFormat,
		Version:   ArtifactVersion,
		Features:  m.schema.Features,
		Label:     m.schema.Label,
		Scaler:    *m.scaler,
		Weights:   m.weights,
		Bias:      m.bias,
		Rows:      m.rows,
		TrainedAt: m.trainedAt,
	}, "", "  ")
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(payload)
	err = multierr.Append(err, tmp.Sync())
	err = multierr.Append(err, tmp.Close())
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}

func (m *LogisticRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrModelNotFound, err)
		}
		return err
	}
	var doc artifact
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnsupportedArtifact, path, err)
	}
	if doc.Format != ArtifactFormat {
		return fmt.Errorf("%w: format %q, expected %q", ErrUnsupportedArtifact, doc.Format, ArtifactFormat)
	}
	if doc.Version != ArtifactVersion {
		return fmt.Errorf("%w: version %d, expected %d", ErrUnsupportedArtifact, doc.Version, ArtifactVersion)
	}
	schema := Schema{Features: doc.Features, Label: doc.Label}
	if err := schema.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedArtifact, err)
	}
	if len(doc.Weights) != schema.Arity() || doc.Scaler.Width() != schema.Arity() {
		return fmt.Errorf("%w: %d features, %d weights, %d scaler columns", ErrUnsupportedArtifact, schema.Arity(), len(doc.Weights), doc.Scaler.Width())
	}
	if err := doc.Scaler.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedArtifact, err)
	}

	scaler := doc.Scaler
	m.schema = schema
	m.scaler = &scaler
	m.weights = doc.Weights
	m.bias = doc.Bias
	m.rows = doc.Rows
	m.trainedAt = doc.TrainedAt
	return nil
}
