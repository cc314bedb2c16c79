package odm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelNotFound is returned when a model name is not registered on the connection.
	ErrModelNotFound = errors.New("odm: model not found")

	// ErrModelExists is returned when a model name is registered twice.
	ErrModelExists = errors.New("odm: model already registered")

	// ErrNilSchema is returned when a model is registered without a schema.
	ErrNilSchema = errors.New("odm: nil schema")

	// ErrValidation is the base error for document validation failures.
	ErrValidation = errors.New("odm: validation failed")

	// ErrNotReference is returned when populating a path that has no Ref.
	ErrNotReference = errors.New("odm: path is not a reference")

	// ErrDocumentNotFound is returned when saving a stored document that no
	// longer matches its replace filter.
	ErrDocumentNotFound = errors.New("odm: document not found")

	// ErrInvalidUpdate is returned for update payloads that cannot be executed.
	ErrInvalidUpdate = errors.New("odm: invalid update")

	// ErrUnknownFieldType is returned when a field type name cannot be parsed.
	ErrUnknownFieldType = errors.New("odm: unknown field type")
)

// ValidationError lists the paths that failed validation on a single document.
type ValidationError struct {
	Model  string
	Errors map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for path, msg := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", path, msg))
	}
	return fmt.Sprintf("%s validation failed: %s", e.Model, strings.Join(parts, ", "))
}

// Is reports ErrValidation so callers can use errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
