// Package testutil provides test stores and fixtures for the pouchspec packages.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Veraticus/pouchspec/internal/service"
	"github.com/Veraticus/pouchspec/internal/storage"
)

// SetupMemoryStore returns an empty in-memory store closed at cleanup.
func SetupMemoryStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// SetupSQLiteStore returns a migrated SQLite store in a temporary directory.
func SetupSQLiteStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "pouchspec.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return store
}

// ForEachStore runs fn against a fresh store of every implementation.
//
// Example:
//
//	testutil.ForEachStore(t, func(t *testing.T, store service.ReviewStore) {
//		wf, _ := review.New(store)
//		...
//	})
func ForEachStore(t *testing.T, fn func(t *testing.T, store service.ReviewStore)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) { fn(t, SetupMemoryStore(t)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, SetupSQLiteStore(t)) })
}

// WithTransaction runs fn in a transaction that is always rolled back.
func WithTransaction(store service.ReviewStore, fn func(tx service.ReviewTx) error) error {
	tx, err := store.BeginTx(context.Background())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
