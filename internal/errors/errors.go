package errors

import (
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// SchemaError indicates a malformed or unsupported connector specification.
// It is fatal and rejects the enclosing request.
type SchemaError struct {
	Path    string
	Message string
}

func (e SchemaError) Error() string {
	msg := "invalid schema"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	return msg + ": " + e.Message
}

// TraversalError indicates the document does not conform to its schema at a
// point where conformance is needed to decide whether a node is sensitive.
type TraversalError struct {
	Path    string
	Message string
}

func (e TraversalError) Error() string {
	msg := "document does not match schema"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	return msg + ": " + e.Message
}

// MalformedCoordinateError indicates a persisted coordinate string that does
// not match the coordinate grammar. Absent data corruption this should never
// occur, so it is surfaced prominently rather than tolerated.
type MalformedCoordinateError struct {
	Value   string
	Message string
}

func (e MalformedCoordinateError) Error() string {
	return fmt.Sprintf("malformed secret coordinate '%s': %s", e.Value, e.Message)
}

// SecretNotFoundError indicates a coordinate or external reference whose
// secret is absent from its backend. The message names the missing reference
// and the backend, never any secret value.
type SecretNotFoundError struct {
	Reference string
	Backend   string
	Err       error
}

func (e SecretNotFoundError) Error() string {
	return fmt.Sprintf("secret '%s' not found in %s", e.Reference, e.Backend)
}

func (e SecretNotFoundError) Unwrap() error {
	return e.Err
}

// ExternalManagerUnavailableError indicates a transient failure reaching the
// configured external secret manager. Backends may retry transient failures
// internally; once surfaced here, retries are exhausted.
type ExternalManagerUnavailableError struct {
	Backend string
	Err     error
}

func (e ExternalManagerUnavailableError) Error() string {
	msg := fmt.Sprintf("external secret manager '%s' unavailable", e.Backend)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e ExternalManagerUnavailableError) Unwrap() error {
	return e.Err
}

// SecretStoreWriteError indicates a failed payload write during obfuscation.
// It aborts the whole document's obfuscation; a partially obfuscated
// document is never returned to the caller.
type SecretStoreWriteError struct {
	Coordinate string
	Backend    string
	Err        error
}

func (e SecretStoreWriteError) Error() string {
	msg := fmt.Sprintf("failed to write secret at coordinate '%s'", e.Coordinate)
	if e.Backend != "" {
		msg += " to " + e.Backend
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e SecretStoreWriteError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(strings.ToLower(errStr), pattern) {
			return true
		}
	}

	return false
}
