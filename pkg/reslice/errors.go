package reslice

import (
	"fmt"

	"mrireslice/internal/models"
)

// ConfigurationError reports a parameter combination the engine cannot run.
// The engine state is left untouched when one is returned.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// UnsupportedScalarTypeError reports an output scalar type the engine cannot produce
type UnsupportedScalarTypeError struct {
	Type models.ScalarType
}

func (e *UnsupportedScalarTypeError) Error() string {
	return fmt.Sprintf("unsupported output scalar type: %v", e.Type)
}

// SupportedScalarType reports whether the engine can produce samples of type t
func SupportedScalarType(t models.ScalarType) bool {
	return t.Size() > 0
}
