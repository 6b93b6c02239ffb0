package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the evaluation error taxonomy.
var (
	ErrSchema     = errors.New("schema error")
	ErrNotFound   = errors.New("not found")
	ErrConfig     = errors.New("config error")
	ErrDegenerate = errors.New("degenerate input")
)

// SchemaError reports a document field that is missing or fails validation.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s: %s", e.Field, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// NewSchemaError creates a SchemaError.
func NewSchemaError(field, reason string) *SchemaError {
	return &SchemaError{Field: field, Reason: reason}
}

// NotFoundError reports a referenced file or resource that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConfigError reports missing or malformed configuration.
type ConfigError struct {
	Key     string
	Reason  string
	Wrapped error
}

func (e *ConfigError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Key, e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// Is lets errors.Is match both ErrConfig and the wrapped cause.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

func (e *ConfigError) Unwrap() error { return e.Wrapped }

// NewConfigError creates a ConfigError.
func NewConfigError(key, reason string, wrapped error) *ConfigError {
	return &ConfigError{Key: key, Reason: reason, Wrapped: wrapped}
}
