package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// MustJSON parses a JSON object literal for use as a test document or
// schema. It fails the test on invalid input, keeping fixtures inline
// and readable.
//
// Example usage:
//
//	spec := testutil.MustJSON(t, `{
//	  "type": "object",
//	  "properties": {
//	    "password": {"type": "string", "airbyte_secret": true}
//	  }
//	}`)
func MustJSON(t *testing.T, raw string) map[string]any {
	t.Helper()

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc), "Invalid JSON fixture")
	return doc
}

// ConnectorSpec returns a schema in the shape connector definitions use,
// with a plain host field, a secret password, a nested secret under
// credentials, and an array of objects carrying a secret api_key.
func ConnectorSpec(t *testing.T) map[string]any {
	t.Helper()
	return MustJSON(t, `{
	  "type": "object",
	  "properties": {
	    "host": {"type": "string"},
	    "password": {"type": "string", "airbyte_secret": true},
	    "credentials": {
	      "type": "object",
	      "properties": {
	        "client_secret": {"type": "string", "airbyte_secret": true}
	      }
	    },
	    "accounts": {
	      "type": "array",
	      "items": {
	        "type": "object",
	        "properties": {
	          "name": {"type": "string"},
	          "api_key": {"type": "string", "airbyte_secret": true}
	        }
	      }
	    }
	  }
	}`)
}

// ConnectorConfig returns a document matching ConnectorSpec with known
// plaintext secrets in every secret position.
func ConnectorConfig(t *testing.T) map[string]any {
	t.Helper()
	return MustJSON(t, `{
	  "host": "db.example.com",
	  "password": "hunter2",
	  "credentials": {"client_secret": "oauth-secret-1"},
	  "accounts": [
	    {"name": "a", "api_key": "key-a"},
	    {"name": "b", "api_key": "key-b"}
	  ]
	}`)
}
