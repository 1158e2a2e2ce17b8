package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrModelUnavailable signals that the registry holds no artifact for the
// requested model type. Retryable after a successful reload.
var ErrModelUnavailable = errors.New("model not available")

// ErrNoHistory signals that no history exists for the requested entity.
var ErrNoHistory = errors.New("no history for entity")

// Violation names one failed field constraint.
type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports every violated constraint in a request, not just
// the first one encountered.
type ValidationError struct {
	Violations []Violation
}

// Check records a violation when ok is false.
func (e *ValidationError) Check(ok bool, field, reason string) {
	if !ok {
		e.Violations = append(e.Violations, Violation{Field: field, Reason: reason})
	}
}

// Empty reports whether any violations were recorded.
func (e *ValidationError) Empty() bool { return len(e.Violations) == 0 }

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Reason))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// SchemaMismatchError signals that an assembled feature vector cannot be
// reconciled with the active artifact's feature schema. Fatal to the single
// request only.
type SchemaMismatchError struct {
	ModelType string
	Want      int
	Got       int
	Missing   []string
}

func (e *SchemaMismatchError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schema for %s names features absent from the input: %s", e.ModelType, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("feature vector for %s has %d values, schema expects %d", e.ModelType, e.Got, e.Want)
}

// LoadError signals a corrupt artifact or missing required metadata. Fatal to
// the load attempt only; a previously cached artifact remains active.
type LoadError struct {
	Key string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load artifact %s: %v", e.Key, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AuditWriteError signals an audit sink failure. Non-fatal: it is surfaced
// through logs and a metrics counter, never through the prediction response.
type AuditWriteError struct {
	Err error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("audit write failed: %v", e.Err)
}

func (e *AuditWriteError) Unwrap() error { return e.Err }
