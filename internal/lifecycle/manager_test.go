package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/confseal/internal/coordinate"
	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/internal/external"
	"github.com/systmms/confseal/internal/logging"
	"github.com/systmms/confseal/internal/reference"
	"github.com/systmms/confseal/tests/fakes"
	"github.com/systmms/confseal/tests/testutil"
)

func newTestManager(t *testing.T, store *fakes.FakeStore, mgr *fakes.FakeManager, opts ...ManagerOption) *Manager {
	t.Helper()

	logger := logging.New(false, true)
	var resolver *external.Resolver
	if mgr != nil {
		resolver = external.New("fake", mgr, logger)
	}
	return NewManager(store, resolver, NewMemoryRegistry(), logger, opts...)
}

// wrappedCoordinate extracts and parses the coordinate wrapper at a field.
func wrappedCoordinate(t *testing.T, value any) coordinate.Coordinate {
	t.Helper()

	ref, ok, err := reference.ParseValue(value)
	require.NoError(t, err)
	require.True(t, ok, "value %#v is not a reference", value)
	require.NotNil(t, ref.Coordinate, "value %#v is not a coordinate wrapper", value)
	return *ref.Coordinate
}

func TestObfuscateHydrateInverse(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	m := newTestManager(t, store, nil)
	ctx := context.Background()

	spec := testutil.ConnectorSpec(t)
	doc := testutil.ConnectorConfig(t)
	owner := uuid.New()

	obfuscated, err := m.Obfuscate(ctx, doc, spec, owner, nil)
	require.NoError(t, err)

	// No plaintext survives obfuscation
	testutil.AssertNoPlaintext(t, obfuscated, "hunter2", "oauth-secret-1", "key-a", "key-b")
	// Non-secret data passes through
	assert.Equal(t, "db.example.com", obfuscated["host"])

	hydrated, err := m.Hydrate(ctx, obfuscated, spec)
	require.NoError(t, err)
	assert.Equal(t, doc, hydrated)
}

func TestObfuscateNonStringScalars(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	m := newTestManager(t, store, nil)
	ctx := context.Background()

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {
	    "pin": {"type": "integer", "airbyte_secret": true},
	    "service_account": {"type": "object", "airbyte_secret": true}
	  }
	}`)
	doc := testutil.MustJSON(t, `{
	  "pin": 1234,
	  "service_account": {"project_id": "p", "private_key": "k"}
	}`)

	obfuscated, err := m.Obfuscate(ctx, doc, spec, uuid.New(), nil)
	require.NoError(t, err)

	hydrated, err := m.Hydrate(ctx, obfuscated, spec)
	require.NoError(t, err)
	assert.Equal(t, doc, hydrated)
}

func TestObfuscateArrayElementsUpdateIndependently(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	m := newTestManager(t, store, nil)
	ctx := context.Background()
	owner := uuid.New()

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {
	    "hosts": {
	      "type": "array",
	      "items": {
	        "type": "object",
	        "properties": {
	          "name": {"type": "string"},
	          "password": {"type": "string", "airbyte_secret": true}
	        }
	      }
	    }
	  }
	}`)
	doc := testutil.MustJSON(t, `{
	  "hosts": [
	    {"name": "a", "password": "pw-a"},
	    {"name": "b", "password": "pw-b"}
	  ]
	}`)

	obfuscated, err := m.Obfuscate(ctx, doc, spec, owner, nil)
	require.NoError(t, err)

	hosts := obfuscated["hosts"].([]any)
	first := wrappedCoordinate(t, hosts[0].(map[string]any)["password"])
	second := wrappedCoordinate(t, hosts[1].(map[string]any)["password"])
	require.NotEqual(t, first.BaseID, second.BaseID, "each element gets its own coordinate")

	// Change only element 0 and re-obfuscate with the previous state
	updated := testutil.MustJSON(t, `{
	  "hosts": [
	    {"name": "a", "password": "pw-a-rotated"},
	    {"name": "b", "password": "pw-b"}
	  ]
	}`)
	reobfuscated, err := m.Obfuscate(ctx, updated, spec, owner, &Previous{
		Obfuscated: obfuscated,
		Hydrated:   doc,
	})
	require.NoError(t, err)

	newHosts := reobfuscated["hosts"].([]any)
	newFirst := wrappedCoordinate(t, newHosts[0].(map[string]any)["password"])
	newSecond := wrappedCoordinate(t, newHosts[1].(map[string]any)["password"])

	// Changed element advances its own coordinate
	assert.Equal(t, first.BaseID, newFirst.BaseID)
	assert.Equal(t, first.Version+1, newFirst.Version)
	// Unchanged element keeps its coordinate verbatim, payload intact
	assert.Equal(t, second, newSecond)
	payload, ok := store.Payload(second.String())
	require.True(t, ok)
	assert.Equal(t, `"pw-b"`, payload)

	// Superseded prior version is gone; nothing the output references is
	_, ok = store.Payload(first.String())
	assert.False(t, ok, "superseded version should be deleted")

	hydrated, err := m.Hydrate(ctx, reobfuscated, spec)
	require.NoError(t, err)
	assert.Equal(t, updated, hydrated)
}

func TestObfuscateMintsVersionOne(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	m := newTestManager(t, store, nil)
	owner := uuid.New()

	spec := testutil.ConnectorSpec(t)
	doc := testutil.ConnectorConfig(t)

	obfuscated, err := m.Obfuscate(context.Background(), doc, spec, owner, nil)
	require.NoError(t, err)

	coord := wrappedCoordinate(t, obfuscated["password"])
	assert.Equal(t, owner, coord.OwnerID)
	assert.Equal(t, 1, coord.Version)

	// The store holds the JSON-encoded payload under the coordinate
	payload, ok := store.Payload(coord.String())
	require.True(t, ok)
	assert.Equal(t, `"hunter2"`, payload)
}

func TestObfuscateUnchangedValueReusesCoordinate(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	m := newTestManager(t, store, nil)
	ctx := context.Background()
	owner := uuid.New()

	spec := testutil.ConnectorSpec(t)
	doc := testutil.ConnectorConfig(t)

	first, err := m.Obfuscate(ctx, doc, spec, owner, nil)
	require.NoError(t, err)
	writesAfterFirst := len(store.Writes())

	second, err := m.Obfuscate(ctx, doc, spec, owner, &Previous{
		Obfuscated: first,
		Hydrated:   doc,
	})
	require.NoError(t, err)

	// Same coordinates, no new writes
	assert.Equal(t, wrappedCoordinate(t, first["password"]), wrappedCoordinate(t, second["password"]))
	assert.Len(t, store.Writes(), writesAfterFirst)
}

func TestObfuscateChangedValueAdvancesVersion(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	m := newTestManager(t, store, nil)
	ctx := context.Background()
	owner := uuid.New()

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)
	docV1 := testutil.MustJSON(t, `{"password": "old-secret"}`)
	docV2 := testutil.MustJSON(t, `{"password": "new-secret"}`)

	first, err := m.Obfuscate(ctx, docV1, spec, owner, nil)
	require.NoError(t, err)
	coordV1 := wrappedCoordinate(t, first["password"])

	second, err := m.Obfuscate(ctx, docV2, spec, owner, &Previous{
		Obfuscated: first,
		Hydrated:   docV1,
	})
	require.NoError(t, err)
	coordV2 := wrappedCoordinate(t, second["password"])

	// Same base, version incremented, never mutated in place
	assert.Equal(t, coordV1.BaseID, coordV2.BaseID)
	assert.Equal(t, coordV1.Version+1, coordV2.Version)

	// The superseded payload is gone, the new one readable
	_, ok := store.Payload(coordV1.String())
	assert.False(t, ok, "prior version should be deleted after supersession")
	payload, ok := store.Payload(coordV2.String())
	require.True(t, ok)
	assert.Equal(t, `"new-secret"`, payload)
}

func TestObfuscateResubmittedWrapperReused(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	m := newTestManager(t, store, nil)
	ctx := context.Background()
	owner := uuid.New()

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)
	doc := testutil.MustJSON(t, `{"password": "s3cret"}`)

	first, err := m.Obfuscate(ctx, doc, spec, owner, nil)
	require.NoError(t, err)
	writesAfterFirst := len(store.Writes())

	// Submitting the already-obfuscated document is idempotent
	second, err := m.Obfuscate(ctx, first, spec, owner, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, store.Writes(), writesAfterFirst)
}

func TestObfuscateExternalReferenceNeverStored(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	mgr := fakes.NewFakeManager().WithSecret("DB_PASSWORD", "from-env")
	m := newTestManager(t, store, mgr)
	ctx := context.Background()

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {
	    "password": {"type": "string", "airbyte_secret": true},
	    "token": {"type": "string", "airbyte_secret": true}
	  }
	}`)
	doc := testutil.MustJSON(t, `{
	  "password": "${DB_PASSWORD}",
	  "token": "secret_coordinate::DB_PASSWORD"
	}`)

	obfuscated, err := m.Obfuscate(ctx, doc, spec, uuid.New(), nil)
	require.NoError(t, err)

	// Both syntaxes normalize to canonical form and nothing hits the store
	assert.Equal(t, "${DB_PASSWORD}", obfuscated["password"])
	assert.Equal(t, "${DB_PASSWORD}", obfuscated["token"])
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, store.Writes())

	// Validation checked existence without reading the value
	assert.NotEmpty(t, mgr.ExistsCalls())
	assert.Empty(t, mgr.ReadCalls())

	// Hydration resolves live
	hydrated, err := m.Hydrate(ctx, obfuscated, spec)
	require.NoError(t, err)
	assert.Equal(t, "from-env", hydrated["password"])
}

func TestObfuscateMissingExternalFails(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	mgr := fakes.NewFakeManager()
	m := newTestManager(t, store, mgr)

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)
	doc := testutil.MustJSON(t, `{"password": "${MISSING}"}`)

	_, err := m.Obfuscate(context.Background(), doc, spec, uuid.New(), nil)
	require.Error(t, err)

	var notFound cserrors.SecretNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, 0, store.Len())
}

func TestObfuscateNoResolverConfigured(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, fakes.NewFakeStore(), nil)

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)
	doc := testutil.MustJSON(t, `{"password": "${NAME}"}`)

	_, err := m.Obfuscate(context.Background(), doc, spec, uuid.New(), nil)
	require.Error(t, err)

	var cfgErr cserrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

// failAfterStore wraps FakeStore and fails every write after the first n.
type failAfterStore struct {
	*fakes.FakeStore
	allow int
	seen  int
	err   error
}

func (f *failAfterStore) Write(ctx context.Context, coordinate string, value string) error {
	f.seen++
	if f.seen > f.allow {
		return f.err
	}
	return f.FakeStore.Write(ctx, coordinate, value)
}

func TestObfuscateRollbackOnWriteFailure(t *testing.T) {
	t.Parallel()

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {
	    "first": {"type": "string", "airbyte_secret": true},
	    "second": {"type": "string", "airbyte_secret": true},
	    "third": {"type": "string", "airbyte_secret": true}
	  }
	}`)
	doc := testutil.MustJSON(t, `{"first": "a", "second": "b", "third": "c"}`)

	inner := fakes.NewFakeStore()
	store := &failAfterStore{FakeStore: inner, allow: 1, err: errors.New("quota exceeded")}

	logger := logging.New(false, true)
	m := NewManager(store, nil, NewMemoryRegistry(), logger)

	_, err := m.Obfuscate(context.Background(), doc, spec, uuid.New(), nil)
	require.Error(t, err)

	var writeErr cserrors.SecretStoreWriteError
	assert.ErrorAs(t, err, &writeErr)

	// The one committed payload was rolled back: nothing remains
	assert.Equal(t, 0, inner.Len(), "partial writes must be rolled back")
}

func TestObfuscateSentinelOwnerRegistersExpiry(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	registry := NewMemoryRegistry()
	logger := logging.New(false, true)
	m := NewManager(store, nil, registry, logger)

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)
	doc := testutil.MustJSON(t, `{"password": "probe"}`)

	obfuscated, err := m.Obfuscate(context.Background(), doc, spec, coordinate.SentinelOwner, nil)
	require.NoError(t, err)

	coord := wrappedCoordinate(t, obfuscated["password"])
	assert.True(t, coord.IsEphemeral())

	entries, err := registry.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, coord.String(), entries[0].Coordinate)
	assert.True(t, entries[0].NotBefore.After(entries[0].RecordedAt), "expiry must lie in the future")
}

func TestObfuscateWorkspaceOwnerNotRegistered(t *testing.T) {
	t.Parallel()

	registry := NewMemoryRegistry()
	logger := logging.New(false, true)
	m := NewManager(fakes.NewFakeStore(), nil, registry, logger)

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)
	doc := testutil.MustJSON(t, `{"password": "durable"}`)

	_, err := m.Obfuscate(context.Background(), doc, spec, uuid.New(), nil)
	require.NoError(t, err)

	entries, err := registry.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHydrateLegacyPlaintextPassesThrough(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, fakes.NewFakeStore(), nil)

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)
	doc := testutil.MustJSON(t, `{"password": "never-obfuscated"}`)

	hydrated, err := m.Hydrate(context.Background(), doc, spec)
	require.NoError(t, err)
	assert.Equal(t, "never-obfuscated", hydrated["password"])
}

func TestHydrateDanglingCoordinate(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, fakes.NewFakeStore(), nil)

	coord := coordinate.Mint(uuid.New())
	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)
	doc := map[string]any{"password": reference.WrapCoordinate(coord)}

	_, err := m.Hydrate(context.Background(), doc, spec)
	require.Error(t, err)

	var notFound cserrors.SecretNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, coord.String(), notFound.Reference)
}

func TestHydrateCorruptWrapperFails(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, fakes.NewFakeStore(), nil)

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)
	doc := testutil.MustJSON(t, `{"password": {"_secret": "garbage"}}`)

	_, err := m.Hydrate(context.Background(), doc, spec)
	require.Error(t, err)

	var malformed cserrors.MalformedCoordinateError
	assert.ErrorAs(t, err, &malformed)
}

func TestHydrateLegacyRawPayload(t *testing.T) {
	t.Parallel()

	// Payloads written by older tools may be raw strings, not JSON
	coord := coordinate.Mint(uuid.New())
	store := fakes.NewFakeStore().WithPayload(coord.String(), "raw-legacy-value")
	m := newTestManager(t, store, nil)

	spec := testutil.MustJSON(t, `{
	  "type": "object",
	  "properties": {"password": {"type": "string", "airbyte_secret": true}}
	}`)
	doc := map[string]any{"password": reference.WrapCoordinate(coord)}

	hydrated, err := m.Hydrate(context.Background(), doc, spec)
	require.NoError(t, err)
	assert.Equal(t, "raw-legacy-value", hydrated["password"])
}

func TestDeleteAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	good := coordinate.Mint(uuid.New())
	bad := coordinate.Mint(uuid.New())

	store := fakes.NewFakeStore().
		WithPayload(good.String(), `"a"`).
		WithPayload(bad.String(), `"b"`).
		WithDeleteError(bad.String(), errors.New("backend down"))

	registry := NewMemoryRegistry()
	logger := logging.New(false, true)
	m := NewManager(store, nil, registry, logger)

	deleted := m.DeleteAll(ctx, []coordinate.Coordinate{good, bad})
	assert.Equal(t, 1, deleted)

	// The failed delete is recorded for the sweep to retry
	entries, err := registry.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, bad.String(), entries[0].Coordinate)
}

func TestCollectCoordinates(t *testing.T) {
	t.Parallel()

	store := fakes.NewFakeStore()
	m := newTestManager(t, store, nil)
	ctx := context.Background()

	spec := testutil.ConnectorSpec(t)
	doc := testutil.ConnectorConfig(t)

	obfuscated, err := m.Obfuscate(ctx, doc, spec, uuid.New(), nil)
	require.NoError(t, err)

	coords, err := CollectCoordinates(obfuscated, spec)
	require.NoError(t, err)
	// password, credentials.client_secret, two account api_keys
	assert.Len(t, coords, 4)
}

func TestPayloadRoundTrip(t *testing.T) {
	t.Parallel()

	values := []any{"plain", 42.0, true, map[string]any{"k": "v"}, []any{"a", 1.0}}
	for _, value := range values {
		payload, err := encodePayload(value)
		require.NoError(t, err)
		assert.Equal(t, value, decodePayload(payload))
	}
}

func TestPayloadJSONStringEncoding(t *testing.T) {
	t.Parallel()

	// A stored string payload is JSON-quoted, so hydration of a numeric
	// string stays a string.
	payload, err := encodePayload("1234")
	require.NoError(t, err)
	assert.Equal(t, `"1234"`, payload)
	assert.Equal(t, "1234", decodePayload(payload))
}
