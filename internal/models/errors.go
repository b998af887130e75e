package models

import "errors"

// Error kinds surfaced by the storage layer. Callers match them with errors.Is.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
)
