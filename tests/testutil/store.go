package testutil

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/Rayus223/admin3/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewTestPersistent wraps backend for use by components under test. Log
// output goes to the test log.
func NewTestPersistent(t *testing.T, backend store.Backend) *store.Persistent {
	t.Helper()
	return store.NewPersistent(backend, NewTestLogger(t))
}

// NewTestLogger returns a zerolog logger writing to t.Log.
func NewTestLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}
