package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned by a Backend when nothing was ever saved under
// the requested key.
var ErrNotFound = errors.New("key not found")

// Backend is a durable key/value medium holding whole serialized
// collections under logical names.
type Backend interface {
	// Get returns the last value written under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put overwrites the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Close releases the underlying resources.
	Close() error
}

// Persistent wraps a Backend with JSON encoding and best-effort
// semantics: Save never fails the caller and Load reports a corrupt or
// unreadable value as absent. Notification history is a convenience, so
// every failure is logged and swallowed.
type Persistent struct {
	backend Backend
	logger  zerolog.Logger
}

// NewPersistent returns a Persistent over backend.
func NewPersistent(backend Backend, logger zerolog.Logger) *Persistent {
	return &Persistent{
		backend: backend,
		logger:  logger.With().Str("component", "store").Logger(),
	}
}

// Save encodes value as JSON and writes it under key. The call returns
// once the write attempt has completed.
func (p *Persistent) Save(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("encoding value for persistence")
		return
	}
	if err := p.backend.Put(ctx, key, data); err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("persisting value")
	}
}

// Load decodes the value stored under key into dest and reports whether
// one was found. Missing, unreadable and corrupt values all return false.
func (p *Persistent) Load(ctx context.Context, key string, dest any) bool {
	data, err := p.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			p.logger.Error().Err(err).Str("key", key).Msg("reading persisted value")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		p.logger.Warn().Err(err).Str("key", key).Msg("discarding corrupt persisted value")
		return false
	}
	return true
}

// Close closes the underlying backend.
func (p *Persistent) Close() error {
	return p.backend.Close()
}
