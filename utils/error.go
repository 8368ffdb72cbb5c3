package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")

	// ErrNotAuthenticated means no owner could be resolved for the request; nothing may be read.
	ErrNotAuthenticated = errors.New("owner id is required")

	ErrInvalidConversion   = errors.New("document is already the target type")
	ErrJobStatusTransition = errors.New("invalid transform job status transition")
	ErrSessionClosed       = errors.New("review session is closed")
)
