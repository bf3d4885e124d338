package ml

import "errors"

var (
	// ErrMissingColumn is returned when a dataset header lacks a required column.
	ErrMissingColumn = errors.New("missing column")

	// ErrInvalidLabel is returned for label cells other than 0 or 1.
	ErrInvalidLabel = errors.New("label must be 0 or 1")

	// ErrEmptyDataset is returned when a dataset has a header but no rows.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrSingleClass is returned when every training row carries the same label.
	ErrSingleClass = errors.New("dataset contains a single class")

	// ErrSchemaMismatch is returned when a feature tuple or feature list does
	// not match the schema recorded in the model artifact.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrModelNotFound is returned when the model artifact does not exist.
	ErrModelNotFound = errors.New("model artifact not found")

	// ErrUnsupportedArtifact is returned for artifacts with an unknown format,
	// an unknown version or inconsistent contents.
	ErrUnsupportedArtifact = errors.New("unsupported model artifact")

	// ErrNotTrained is returned when predicting or saving with an unfitted model.
	ErrNotTrained = errors.New("model not trained")
)
