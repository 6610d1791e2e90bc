// Package apperr holds the error taxonomy shared by stores, services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrForbidden              = errors.New("forbidden")
	ErrValidation             = errors.New("validation error")
	ErrComplianceRejected     = errors.New("compliance rejected")
	ErrDependencyUnavailable  = errors.New("dependency unavailable")
	ErrConflict               = errors.New("conflict")
)

func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

func InvalidTransition(entity, id, from, action string) error {
	return fmt.Errorf("%s %q cannot %s from status %q: %w", entity, id, action, from, ErrInvalidStateTransition)
}

func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrForbidden)
}

func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrDependencyUnavailable, err)
}

// ComplianceError is returned when the compliance policy blocks a submission.
// ResourceID points at the rejected record kept for audit.
type ComplianceError struct {
	ResourceID string
	RiskLevel  string
	Flags      []string
}

func (e *ComplianceError) Error() string {
	return fmt.Sprintf("submission %s blocked with risk level %s", e.ResourceID, e.RiskLevel)
}

func (e *ComplianceError) Unwrap() error { return ErrComplianceRejected }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
