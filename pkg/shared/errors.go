package shared

import "errors"

// Sentinel errors shared by the dataset, tracking engine and API layer.
// Callers match them with errors.Is; producers wrap them with context.
var (
	ErrNotFound     = errors.New("not found")
	ErrTypeMismatch = errors.New("path type mismatch")
	ErrValidation   = errors.New("validation failed")
	ErrUnavailable  = errors.New("dataset unavailable")
)
