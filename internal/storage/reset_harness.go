//go:build testharness

package storage

import (
	"context"
	"fmt"
)

// ResetAll drops every task and log entry. Only compiled into test builds.
func (s *MemoryStore) ResetAll(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.state = newMemState()
	return nil
}

// ResetAll drops every task and log entry, lifting the append-only
// triggers for the duration of the transaction. Only compiled into test
// builds.
func (s *SQLiteStorage) ResetAll(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	queries := []string{
		`DROP TRIGGER IF EXISTS review_logs_no_update`,
		`DROP TRIGGER IF EXISTS review_logs_no_delete`,
		`DROP TRIGGER IF EXISTS extraction_logs_no_update`,
		`DROP TRIGGER IF EXISTS extraction_logs_no_delete`,
		`DELETE FROM review_comments`,
		`DELETE FROM review_tasks`,
		`DELETE FROM review_logs`,
		`DELETE FROM extraction_logs`,
	}
	if err := execAll(tx, queries); err != nil {
		return err
	}

	// Version 2 recreates the triggers.
	for _, m := range migrations {
		if m.Version == 2 {
			if err := m.Up(tx); err != nil {
				return fmt.Errorf("failed to restore append-only triggers: %w", err)
			}
		}
	}

	return tx.Commit()
}
