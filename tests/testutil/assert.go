// Package testutil provides shared helpers for confseal tests.
package testutil

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertSecretRedacted verifies that a secret value does not appear in a string.
//
// This is a specialized assertion for security testing. It checks that the
// secret value is not present in the output, and that the [REDACTED] marker
// is present instead.
//
// Example usage:
//
//	output := someOperation()
//	AssertSecretRedacted(t, output, "password123")
func AssertSecretRedacted(t *testing.T, output, secretValue string) {
	t.Helper()

	// Secret value must not appear
	assert.NotContains(t, output, secretValue,
		"Secret value %q should be redacted, but appears in output", secretValue)

	// [REDACTED] marker should appear
	assert.Contains(t, output, "[REDACTED]",
		"Expected [REDACTED] marker when secret is used")
}

// AssertNoPlaintext verifies that none of the given secret values survive
// anywhere in a document, including nested objects and arrays.
//
// Example usage:
//
//	obfuscated, _ := manager.Obfuscate(ctx, doc, spec, owner, nil)
//	AssertNoPlaintext(t, obfuscated, "password123", "api-key-456")
func AssertNoPlaintext(t *testing.T, doc any, secretValues ...string) {
	t.Helper()

	data, err := json.Marshal(doc)
	require.NoError(t, err, "Failed to encode document for leak check")

	for _, secret := range secretValues {
		encoded, err := json.Marshal(secret)
		require.NoError(t, err)
		// Strip quotes so substring matching also catches the value
		// embedded inside longer strings.
		needle := strings.Trim(string(encoded), `"`)
		assert.NotContains(t, string(data), needle,
			"Plaintext secret %q leaked into document", secret)
	}
}

// AssertErrorContains verifies that an error occurred and mentions a substring.
func AssertErrorContains(t *testing.T, err error, substr string) {
	t.Helper()

	require.Error(t, err, "Expected an error containing %q", substr)
	assert.Contains(t, err.Error(), substr,
		"Error %q should contain %q", err.Error(), substr)
}
