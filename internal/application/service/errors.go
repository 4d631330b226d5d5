package service

import "errors"

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

var (
	// ErrValidation is returned for malformed payloads: negative
	// quantities, unknown statuses, missing required fields
	ErrValidation = errors.New("validation failed")

	// ErrClaimWindowClosed is returned when a claim is filed against a
	// warranty expired beyond the configured grace window
	ErrClaimWindowClosed = errors.New("warranty claim window has closed")
)
