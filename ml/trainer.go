package ml

import (
	"errors"

	"go.uber.org/zap"
)

type TrainResult struct {
	ModelPath string
	Rows      int
	Metrics   Metrics
	Model     *LogisticRegression
}

// Trainer loads a labelled dataset, fits a model and writes the artifact.
type Trainer struct {
	schema Schema
	csv    CSVOptions
	logger *zap.Logger
}

func NewTrainer(schema Schema, opts CSVOptions, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		schema: schema,
		csv:    opts,
		logger: logger.Named("trainer"),
	}
}

func (t *Trainer) Run(datasetPath, modelPath string) (*TrainResult, error) {
	if datasetPath == "" {
		return nil, errors.New("dataset path is required")
	}
	if modelPath == "" {
		return nil, errors.New("model path is required")
	}

	dataset, err := LoadDataset(datasetPath, t.schema, t.csv)
	if err != nil {
		return nil, err
	}
	negatives, positives := dataset.ClassCounts()
	t.logger.Debug("dataset loaded",
		zap.String("path", datasetPath),
		zap.Int("rows", dataset.Len()),
		zap.Int("positives", positives),
		zap.Int("negatives", negatives),
	)

	model := NewLogisticRegression(t.schema)
	if err := model.Train(dataset.Features, dataset.Labels); err != nil {
		return nil, err
	}
	metrics := Evaluate(model, dataset.Features, dataset.Labels)
	t.logger.Info("model fitted",
		zap.Stringer("schema", t.schema),
		zap.Float64("accuracy", metrics.Accuracy),
		zap.Float64("precision", metrics.Precision),
		zap.Float64("recall", metrics.Recall),
	)

	if err := model.Save(modelPath); err != nil {
		return nil, err
	}
	t.logger.Info("model saved", zap.String("path", modelPath))

	return &TrainResult{
		ModelPath: modelPath,
		Rows:      dataset.Len(),
		Metrics:   metrics,
		Model:     model,
	}, nil
}
