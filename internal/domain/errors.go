package domain

import "errors"

// Error taxonomy. Components wrap these with fmt.Errorf("...: %w", err) so
// callers can classify failures with errors.Is without depending on backend
// packages.
var (
	// ErrInvalidInput marks caller-supplied data that violates a contract:
	// wrong vector dimension, mismatched batch lengths, empty text. Never
	// worth retrying.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBackend marks a vector-backend failure: unreachable service,
	// rejected request, or a reported internal error. Retry policy belongs
	// to the caller.
	ErrBackend = errors.New("vector backend error")

	// ErrProvider marks an embedding or generation backend failure.
	ErrProvider = errors.New("provider error")
)
