package jobs

import (
	"errors"
	"strings"

	"github.com/kiranshivaraju/jobstore/internal/access"
)

var (
	// ErrForbidden is the guard's denial, re-exported for callers of this package.
	ErrForbidden = access.ErrForbidden
	ErrNotFound  = errors.New("job not found")
	// ErrBadRequest is wrapped by every *ValidationError.
	ErrBadRequest = errors.New("bad request")

	// errDegraded marks an index failure that is answered from the database instead.
	errDegraded = errors.New("search index degraded")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrBadRequest }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}
