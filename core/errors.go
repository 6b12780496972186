package core

import "errors"

// Failure taxonomy. Callers classify with errors.Is and decide whether to
// degrade or reject; end users never see these directly except
// ErrMalformedInput on the inbound boundary.
var (
	// ErrStorageUnavailable marks any failed read or write against the
	// external memory service. Non-critical reads degrade to defaults;
	// critical writes are logged and the request still succeeds.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrGenerationUnavailable marks a failed or unusable text-completion
	// call. The pipeline substitutes the fixed fallback reply.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrMalformedInput marks an inbound payload that failed validation.
	// Rejected immediately, no side effects, never retried.
	ErrMalformedInput = errors.New("malformed input")

	// ErrNotFound marks a lookup by identifier that yielded no record.
	ErrNotFound = errors.New("not found")
)
