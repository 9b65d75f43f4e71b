package contracts

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by pipeline stages. Callers match with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrTraining         = errors.New("training error")
	ErrNotFound         = errors.New("not found")
	ErrInsufficientData = errors.New("insufficient data")
)

// PipelineError carries the failing stage and a human-readable reason so the
// caller can render a user-facing message without parsing error strings.
type PipelineError struct {
	Kind   error
	Stage  string
	Reason string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Reason)
}

func (e *PipelineError) Unwrap() error {
	return e.Kind
}

// Validationf builds a ValidationError for the given stage.
func Validationf(stage, format string, args ...interface{}) error {
	return &PipelineError{Kind: ErrValidation, Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// Trainingf builds a TrainingError for the given stage.
func Trainingf(stage, format string, args ...interface{}) error {
	return &PipelineError{Kind: ErrTraining, Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundf builds a NotFoundError for the given stage.
func NotFoundf(stage, format string, args ...interface{}) error {
	return &PipelineError{Kind: ErrNotFound, Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientDataf builds an InsufficientDataError for the given stage.
func InsufficientDataf(stage, format string, args ...interface{}) error {
	return &PipelineError{Kind: ErrInsufficientData, Stage: stage, Reason: fmt.Sprintf(format, args...)}
}
