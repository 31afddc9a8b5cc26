// Package external resolves external references against the configured
// secret-manager boundary.
//
// Which manager backs the boundary is process-wide deployment configuration,
// injected at construction and immutable afterwards. Resolution is always a
// direct, uncached lookup: the external store is the source of truth and may
// change between executions. The resolver never writes, never deletes, and
// never persists a resolved value.
package external

import (
	"context"
	"errors"
	"time"

	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/internal/logging"
	"github.com/systmms/confseal/internal/reference"
	"github.com/systmms/confseal/pkg/secretstore"
)

const defaultTimeout = 30 * time.Second

// Resolver dispatches external references to one configured Manager.
type Resolver struct {
	backend string
	manager secretstore.Manager
	timeout time.Duration
	logger  *logging.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds each manager call. The zero value keeps the default.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// New creates a resolver for the named manager backend.
func New(backend string, manager secretstore.Manager, logger *logging.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		backend: backend,
		manager: manager,
		timeout: defaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend returns the configured manager's name, for error reporting.
func (r *Resolver) Backend() string {
	return r.backend
}

// Resolve performs a live lookup of the reference's name and returns the
// plaintext. A missing name is SecretNotFoundError; a timeout or transport
// failure is ExternalManagerUnavailableError.
func (r *Resolver) Resolve(ctx context.Context, ref reference.External) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	value, err := r.manager.Read(ctx, ref.Name)
	if err != nil {
		return "", r.classify(ref, err)
	}

	r.logger.Debug("resolved external reference %s from %s: %s", ref.Name, r.backend, logging.Secret(value))
	return value, nil
}

// Validate eagerly checks that the referenced name exists, so an invalid
// reference is rejected when it is first accepted into a document rather
// than at first use.
func (r *Resolver) Validate(ctx context.Context, ref reference.External) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	exists, err := r.manager.Exists(ctx, ref.Name)
	if err != nil {
		return r.classify(ref, err)
	}
	if !exists {
		return cserrors.SecretNotFoundError{
			Reference: ref.Name,
			Backend:   r.backend,
		}
	}
	return nil
}

func (r *Resolver) classify(ref reference.External, err error) error {
	var notFound secretstore.NotFoundError
	if errors.As(err, &notFound) {
		return cserrors.SecretNotFoundError{
			Reference: ref.Name,
			Backend:   r.backend,
			Err:       err,
		}
	}
	return cserrors.ExternalManagerUnavailableError{
		Backend: r.backend,
		Err:     err,
	}
}
