package types

import "errors"

// Error kinds returned by the core. These are sentinel values rather than a
// library-specific error hierarchy; callers compare with errors.Is.
var (
	// ErrInvalidInput indicates caller-provided input violates a documented constraint.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates an id does not resolve to a row.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness violation not already handled as a
	// structured dedup "skipped" result.
	ErrConflict = errors.New("conflict")

	// ErrSchemaCorrupt indicates the backing store could not be initialized
	// or its column catalog could not be read.
	ErrSchemaCorrupt = errors.New("schema corrupt")

	// ErrDecryptionFailed indicates a wrong password or tampered ciphertext.
	// No operation in this module returns it: backups are plain,
	// unencrypted copies and there is no encrypted import.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrProviderUnavailable indicates the embedding provider collaborator
	// failed. Non-fatal for writes; demotes the vector component to zero
	// for queries.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrTransient indicates retryable store contention. Retried once
	// internally before being surfaced.
	ErrTransient = errors.New("transient store contention")
)
