package lifecycle

import (
	"context"
	"time"

	"github.com/systmms/confseal/internal/logging"
	"github.com/systmms/confseal/internal/metrics"
	"github.com/systmms/confseal/pkg/secretstore"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 15 * time.Minute

// Sweeper deletes pending coordinates once their deadline has passed:
// ephemeral sentinel-owner payloads past their TTL and superseded versions
// whose immediate delete failed. Deletion is best-effort per entry.
// Missing a deadline is acceptable, deleting live data is not, so an entry
// is never touched before its NotBefore time.
type Sweeper struct {
	store    secretstore.Store
	registry Registry
	logger   *logging.Logger
	metrics  *metrics.Recorder
	interval time.Duration
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the background sweep interval.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// NewSweeper creates a sweeper over the given store and registry.
func NewSweeper(store secretstore.Store, registry Registry, logger *logging.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:    store,
		registry: registry,
		logger:   logger,
		metrics:  metrics.NewRecorder(),
		interval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweepOnce deletes every registered coordinate whose NotBefore is at or
// before now. Store deletes are idempotent, so retrying an entry that was
// half-processed is safe. Returns the number of coordinates deleted.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	entries, err := s.registry.List()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, entry := range entries {
		if entry.NotBefore.After(now) {
			continue
		}

		err := s.store.Delete(ctx, entry.Coordinate)
		s.metrics.RecordStoreOp("delete", err)
		if err != nil {
			s.logger.Warn("sweep: failed to delete coordinate %s: %v (will retry)", entry.Coordinate, err)
			continue
		}

		// Remove the registry entry only after the store delete
		// succeeded; a crash in between just means one redundant,
		// idempotent delete on the next pass.
		if err := s.registry.Remove(entry.Coordinate); err != nil {
			s.logger.Warn("sweep: failed to drop registry entry for %s: %v", entry.Coordinate, err)
			continue
		}

		deleted++
		s.metrics.RecordSweepDeletion()
		s.logger.Debug("sweep: deleted expired coordinate %s", entry.Coordinate)
	}

	return deleted, nil
}

// Run executes the sweep periodically until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx, time.Now()); err != nil {
				s.logger.Error("sweep failed: %v", err)
			}
		}
	}
}
