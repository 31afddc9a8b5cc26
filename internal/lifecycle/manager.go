// Package lifecycle orchestrates obfuscation and hydration of configuration
// documents and owns the full lifecycle of the coordinates it mints.
//
// The manager is the sole writer of coordinate-to-payload mappings in the
// secret store: it mints coordinates on first obfuscation, advances the
// version (never mutating in place) when a value changes, deletes prior
// versions once superseded, and registers sentinel-owner coordinates for
// expiry. External references pass through untouched; they are validated
// eagerly but never stored.
//
// Obfuscation of a document is all-or-nothing. The walk produces a write
// plan without touching the store; the plan is committed only after the
// whole document transformed cleanly, and a failed commit rolls back the
// coordinates already written before surfacing SecretStoreWriteError. A
// caller therefore never persists a document mixing plaintext and
// references for one logical update.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/systmms/confseal/internal/coordinate"
	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/internal/external"
	"github.com/systmms/confseal/internal/logging"
	"github.com/systmms/confseal/internal/metrics"
	"github.com/systmms/confseal/internal/reference"
	"github.com/systmms/confseal/internal/schema"
	"github.com/systmms/confseal/internal/walker"
	"github.com/systmms/confseal/pkg/secretstore"
)

// DefaultEphemeralTTL is how long a sentinel-owner coordinate lives before
// the expiry sweep may delete it.
const DefaultEphemeralTTL = 2 * time.Hour

const defaultStoreTimeout = 30 * time.Second

// Manager drives the secret lifecycle for configuration documents.
type Manager struct {
	store        secretstore.Store
	storeName    string
	resolver     *external.Resolver
	registry     Registry
	logger       *logging.Logger
	metrics      *metrics.Recorder
	ephemeralTTL time.Duration
	storeTimeout time.Duration

	// ownerLocks serializes version-advance per owner: advancing is a
	// read-then-write of "current version", and a race could mint two
	// coordinates at the same version or lose a deletion.
	mu         sync.Mutex
	ownerLocks map[uuid.UUID]*sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStoreName sets the store's display name used in error messages.
func WithStoreName(name string) ManagerOption {
	return func(m *Manager) {
		m.storeName = name
	}
}

// WithEphemeralTTL overrides the sentinel-owner coordinate lifetime.
func WithEphemeralTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ephemeralTTL = ttl
		}
	}
}

// WithStoreTimeout bounds each individual store call.
func WithStoreTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		if timeout > 0 {
			m.storeTimeout = timeout
		}
	}
}

// NewManager creates a lifecycle manager. The resolver may be nil when no
// external secret manager is configured; documents containing external
// references then fail obfuscation and hydration with a configuration
// error.
func NewManager(store secretstore.Store, resolver *external.Resolver, registry Registry, logger *logging.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:        store,
		storeName:    "secret store",
		resolver:     resolver,
		registry:     registry,
		logger:       logger,
		metrics:      metrics.NewRecorder(),
		ephemeralTTL: DefaultEphemeralTTL,
		storeTimeout: defaultStoreTimeout,
		ownerLocks:   make(map[uuid.UUID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Previous carries the previously persisted state of a document being
// updated: the stored obfuscated form (source of existing coordinates) and
// its hydrated form (source of raw values for the unchanged-value check).
type Previous struct {
	Obfuscated map[string]any
	Hydrated   map[string]any
}

// writeOp is one planned payload write.
type writeOp struct {
	coord   coordinate.Coordinate
	payload string
	// advanced is set when the write supersedes a prior version.
	advanced bool
}

// Obfuscate replaces every sensitive leaf of doc with a reference. Raw
// values are written to the store under minted or advanced coordinates;
// external references are validated and normalized but never stored;
// already-wrapped coordinates are reused unchanged. prev may be nil for a
// brand-new document.
func (m *Manager) Obfuscate(ctx context.Context, doc, spec map[string]any, ownerID uuid.UUID, prev *Previous) (map[string]any, error) {
	start := time.Now()
	defer m.metrics.ObserveDuration("obfuscate", start)

	lock := m.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	prevCoords, prevValues, err := m.collectPrevious(spec, prev)
	if err != nil {
		return nil, err
	}

	var (
		plan          []writeOp
		priorVersions []coordinate.Coordinate
	)

	visitor := walker.VisitorFunc(func(path schema.Path, value any) (any, error) {
		ref, isRef, err := reference.ParseValue(value)
		if err != nil {
			return nil, err
		}
		if isRef {
			if ref.External != nil {
				if err := m.validateExternal(ctx, *ref.External); err != nil {
					return nil, err
				}
				return ref.External.String(), nil
			}
			// Caller re-submitted the stored wrapper: the value is
			// unchanged, reuse the coordinate without a store write.
			return reference.WrapCoordinate(*ref.Coordinate), nil
		}

		payload, err := encodePayload(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode secret at %s: %w", path, err)
		}

		key := path.String()
		if prevCoord, ok := prevCoords[key]; ok {
			if prevValue, ok := prevValues[key]; ok && reflect.DeepEqual(prevValue, value) {
				return reference.WrapCoordinate(prevCoord), nil
			}
			next := prevCoord.NextVersion()
			plan = append(plan, writeOp{coord: next, payload: payload, advanced: true})
			priorVersions = append(priorVersions, prevCoord)
			return reference.WrapCoordinate(next), nil
		}

		minted := coordinate.Mint(ownerID)
		plan = append(plan, writeOp{coord: minted, payload: payload})
		return reference.WrapCoordinate(minted), nil
	})

	transformed, err := walker.Walk(doc, spec, visitor)
	if err != nil {
		return nil, err
	}

	if err := m.commit(ctx, plan); err != nil {
		return nil, err
	}

	m.afterCommit(ctx, ownerID, plan, priorVersions)

	result, ok := transformed.(map[string]any)
	if !ok {
		return nil, cserrors.TraversalError{Message: fmt.Sprintf("document root is %T, expected object", transformed)}
	}
	return result, nil
}

// Hydrate replaces every reference in doc with its live secret value.
// Coordinate references are read from the store; external references are
// resolved live; a plain sensitive value that was never obfuscated passes
// through unchanged, tolerating legacy documents. The result must be held
// only in process memory and never re-persisted or logged.
func (m *Manager) Hydrate(ctx context.Context, doc, spec map[string]any) (map[string]any, error) {
	start := time.Now()
	defer m.metrics.ObserveDuration("hydrate", start)

	visitor := walker.VisitorFunc(func(path schema.Path, value any) (any, error) {
		ref, isRef, err := reference.ParseValue(value)
		if err != nil {
			return nil, err
		}
		if !isRef {
			return value, nil
		}

		if ref.Coordinate != nil {
			return m.readPayload(ctx, *ref.Coordinate)
		}

		if m.resolver == nil {
			return nil, cserrors.ConfigError{
				Field:      "externalManager",
				Message:    "document references an external secret but no external secret manager is configured",
				Suggestion: "Add an 'externalManager:' section to your confseal.yaml",
			}
		}
		plaintext, err := m.resolver.Resolve(ctx, *ref.External)
		m.metrics.RecordExternalLookup(err)
		if err != nil {
			return nil, err
		}
		return plaintext, nil
	})

	transformed, err := walker.Walk(doc, spec, visitor)
	if err != nil {
		return nil, err
	}

	result, ok := transformed.(map[string]any)
	if !ok {
		return nil, cserrors.TraversalError{Message: fmt.Sprintf("document root is %T, expected object", transformed)}
	}
	return result, nil
}

// DeleteAll deletes every given coordinate from the store, best-effort per
// entry: individual failures are logged and recorded for retry by the
// sweep rather than aborting the batch. External references are never part
// of this call. Returns the number of coordinates deleted now.
func (m *Manager) DeleteAll(ctx context.Context, coords []coordinate.Coordinate) int {
	deleted := 0
	for _, coord := range coords {
		if err := m.deleteNow(ctx, coord); err != nil {
			m.logger.Warn("failed to delete coordinate %s: %v (will retry in sweep)", coord, err)
			m.deferDeletion(coord, time.Now())
			continue
		}
		deleted++
		if err := m.registry.Remove(coord.String()); err != nil {
			m.logger.Warn("failed to drop registry entry for %s: %v", coord, err)
		}
	}
	return deleted
}

// CollectCoordinates extracts every coordinate referenced by an obfuscated
// document, for use when the owning configuration is deleted or superseded.
func CollectCoordinates(doc, spec map[string]any) ([]coordinate.Coordinate, error) {
	var coords []coordinate.Coordinate
	visitor := walker.VisitorFunc(func(path schema.Path, value any) (any, error) {
		ref, isRef, err := reference.ParseValue(value)
		if err != nil {
			return nil, err
		}
		if isRef && ref.Coordinate != nil {
			coords = append(coords, *ref.Coordinate)
		}
		return value, nil
	})
	if _, err := walker.Walk(doc, spec, visitor); err != nil {
		return nil, err
	}
	return coords, nil
}

// commit executes the write plan. On any failure the already-written
// coordinates are rolled back (best-effort) so the store never holds
// payloads for a document the caller will not persist.
func (m *Manager) commit(ctx context.Context, plan []writeOp) error {
	for i, op := range plan {
		err := m.writePayload(ctx, op.coord, op.payload)
		m.metrics.RecordStoreOp("write", err)
		if err != nil {
			m.rollback(ctx, plan[:i])
			return cserrors.SecretStoreWriteError{
				Coordinate: op.coord.String(),
				Backend:    m.storeName,
				Err:        err,
			}
		}
	}
	return nil
}

func (m *Manager) rollback(ctx context.Context, committed []writeOp) {
	for _, op := range committed {
		if err := m.deleteNow(ctx, op.coord); err != nil {
			m.logger.Warn("rollback: failed to delete coordinate %s: %v (will retry in sweep)", op.coord, err)
			m.deferDeletion(op.coord, time.Now())
		}
	}
}

// afterCommit performs the bookkeeping that follows a successful commit:
// prior versions become eligible for deletion, sentinel-owner coordinates
// are registered for expiry, and counters are recorded.
func (m *Manager) afterCommit(ctx context.Context, ownerID uuid.UUID, plan []writeOp, priorVersions []coordinate.Coordinate) {
	for _, prior := range priorVersions {
		if err := m.deleteNow(ctx, prior); err != nil {
			m.logger.Warn("failed to delete superseded coordinate %s: %v (will retry in sweep)", prior, err)
			m.deferDeletion(prior, time.Now())
		}
	}

	ownerKind := "workspace"
	if ownerID == coordinate.SentinelOwner {
		ownerKind = "sentinel"
	}
	for _, op := range plan {
		if op.advanced {
			m.metrics.RecordVersionAdvance()
		} else {
			m.metrics.RecordMint(ownerKind)
		}
		if op.coord.IsEphemeral() {
			m.deferDeletion(op.coord, time.Now().Add(m.ephemeralTTL))
		}
	}
}

func (m *Manager) deferDeletion(coord coordinate.Coordinate, notBefore time.Time) {
	entry := Entry{
		Coordinate: coord.String(),
		NotBefore:  notBefore,
		RecordedAt: time.Now(),
	}
	if err := m.registry.Record(entry); err != nil {
		m.logger.Error("failed to record pending deletion for %s: %v", coord, err)
	}
}

func (m *Manager) writePayload(ctx context.Context, coord coordinate.Coordinate, payload string) error {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	return m.store.Write(ctx, coord.String(), payload)
}

func (m *Manager) readPayload(ctx context.Context, coord coordinate.Coordinate) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()

	payload, err := m.store.Read(ctx, coord.String())
	m.metrics.RecordStoreOp("read", err)
	if err != nil {
		var notFound secretstore.NotFoundError
		if errors.As(err, &notFound) {
			return nil, cserrors.SecretNotFoundError{
				Reference: coord.String(),
				Backend:   m.storeName,
				Err:       err,
			}
		}
		return nil, fmt.Errorf("failed to read secret at coordinate %s: %w", coord, err)
	}
	return decodePayload(payload), nil
}

func (m *Manager) deleteNow(ctx context.Context, coord coordinate.Coordinate) error {
	ctx, cancel := context.WithTimeout(ctx, m.storeTimeout)
	defer cancel()
	err := m.store.Delete(ctx, coord.String())
	m.metrics.RecordStoreOp("delete", err)
	return err
}

func (m *Manager) validateExternal(ctx context.Context, ref reference.External) error {
	if m.resolver == nil {
		return cserrors.ConfigError{
			Field:      "externalManager",
			Message:    "document references an external secret but no external secret manager is configured",
			Suggestion: "Add an 'externalManager:' section to your confseal.yaml",
		}
	}
	err := m.resolver.Validate(ctx, ref)
	m.metrics.RecordExternalLookup(err)
	return err
}

// collectPrevious indexes the previous document's coordinates and raw
// values by sensitive path.
func (m *Manager) collectPrevious(spec map[string]any, prev *Previous) (map[string]coordinate.Coordinate, map[string]any, error) {
	coords := make(map[string]coordinate.Coordinate)
	values := make(map[string]any)
	if prev == nil {
		return coords, values, nil
	}

	if prev.Obfuscated != nil {
		visitor := walker.VisitorFunc(func(path schema.Path, value any) (any, error) {
			ref, isRef, err := reference.ParseValue(value)
			if err != nil {
				return nil, err
			}
			if isRef && ref.Coordinate != nil {
				coords[path.String()] = *ref.Coordinate
			}
			return value, nil
		})
		if _, err := walker.Walk(prev.Obfuscated, spec, visitor); err != nil {
			return nil, nil, fmt.Errorf("failed to index previous document: %w", err)
		}
	}

	if prev.Hydrated != nil {
		visitor := walker.VisitorFunc(func(path schema.Path, value any) (any, error) {
			if _, isRef, _ := reference.ParseValue(value); !isRef {
				values[path.String()] = value
			}
			return value, nil
		})
		if _, err := walker.Walk(prev.Hydrated, spec, visitor); err != nil {
			return nil, nil, fmt.Errorf("failed to index previous values: %w", err)
		}
	}

	return coords, values, nil
}

func (m *Manager) ownerLock(ownerID uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.ownerLocks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		m.ownerLocks[ownerID] = lock
	}
	return lock
}

// encodePayload serializes a leaf value for storage. JSON encoding keeps
// non-string scalars round-trippable through hydration.
func encodePayload(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodePayload restores a stored payload. Payloads written by older tools
// may be raw strings rather than JSON; those pass through verbatim.
func decodePayload(payload string) any {
	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return payload
	}
	return value
}
