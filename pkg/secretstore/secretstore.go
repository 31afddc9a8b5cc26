// Package secretstore defines the boundary interfaces between the secret
// processing engine and the physical secret backends.
//
// Two collaborators live behind this boundary:
//
//   - Store: the managed payload store. The lifecycle manager is the sole
//     writer; it addresses payloads by coordinate string and owns their
//     full lifecycle (write on obfuscation, read on hydration, delete on
//     version advance, supersede, or expiry).
//
//   - Manager: an externally managed secret manager. Secrets referenced
//     through it are addressed by the exact, case-sensitive name the
//     operator configured in that system. The engine never writes to it.
//
// Implementations live in internal/stores and are selected by deployment
// configuration. All methods must be safe for concurrent use and must honor
// context cancellation; network-backed implementations may retry transient
// failures with backoff internally, but must never retry a not-found.
//
// # Error Handling
//
// Implementations return NotFoundError when an addressed secret does not
// exist and WriteError when a payload write fails. Delete is idempotent:
// deleting an absent coordinate is not an error.
//
// # Security
//
// Payload values passed through this boundary are plaintext. Implementations
// must never log them (use logging.Secret when a value must appear in a
// format call) and should not hold them longer than the call.
package secretstore

import "context"

// Store is the managed secret payload store.
//
// Coordinates are opaque to the store: deterministic, filesystem- and
// URL-safe strings minted by the lifecycle manager. A coordinate maps to
// exactly one payload; a changed payload is written under a new coordinate,
// never overwritten in place by the engine.
type Store interface {
	// Write persists value under coordinate. Writing to an existing
	// coordinate replaces its payload.
	Write(ctx context.Context, coordinate string, value string) error

	// Read returns the payload stored at coordinate, or NotFoundError if
	// the coordinate has no payload.
	Read(ctx context.Context, coordinate string) (string, error)

	// Delete removes the payload at coordinate. Deleting an absent
	// coordinate returns nil.
	Delete(ctx context.Context, coordinate string) error
}

// Manager is the read-only boundary to an external secret manager holding
// user-managed secrets.
type Manager interface {
	// Exists reports whether a secret with the given name is present.
	Exists(ctx context.Context, name string) (bool, error)

	// Read returns the current value of the named secret, or NotFoundError
	// if no such secret exists.
	Read(ctx context.Context, name string) (string, error)
}

// NotFoundError indicates that an addressed secret does not exist in the
// backend.
type NotFoundError struct {
	// Backend is the name of the store or manager that was queried.
	Backend string

	// Key is the coordinate or external name that could not be found.
	Key string
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return "secret not found: " + e.Key + " in " + e.Backend
}

// WriteError indicates that persisting a payload failed.
type WriteError struct {
	// Backend is the name of the store that rejected the write.
	Backend string

	// Key is the coordinate being written.
	Key string

	// Err is the underlying backend error.
	Err error
}

// Error implements the error interface.
func (e WriteError) Error() string {
	msg := "secret write failed: " + e.Key + " in " + e.Backend
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying backend error.
func (e WriteError) Unwrap() error {
	return e.Err
}
