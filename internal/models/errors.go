package models

import "errors"

// Error taxonomy shared by ingestion, training, prediction and the HTTP layer.
// Callers match with errors.Is; producers wrap with fmt.Errorf("...: %w", Err...).
var (
	// ErrValidation is bad caller input (unknown category, malformed threshold). Never retried.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is an unknown athlete or team, or an athlete with zero records.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientData means the sample is too small for a threshold or likelihood.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelUnavailable means no trained model exists for the category. Resolved by training.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrSourceUnavailable means every retrieval tier failed.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNoData means an ingestion run produced no usable athlete data.
	ErrNoData = errors.New("no athlete yielded data")

	// ErrDatasetInvalid means the dataset is missing a globally required column.
	ErrDatasetInvalid = errors.New("dataset invalid")
)
