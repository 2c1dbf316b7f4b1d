package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/model"
	"github.com/Veraticus/pouchspec/internal/service"
)

// SQLiteStorage implements service.ReviewStore using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage opens (creating if needed) the database at dbPath. Call
// Migrate before use.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes transactions, and keeps a :memory: database
	// alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.ReviewTx, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", classify(err))
	}

	return &sqliteTransaction{tx: tx, storage: s}, nil
}

// GetTask retrieves a review task by id.
func (s *SQLiteStorage) GetTask(ctx context.Context, id string) (*model.ReviewTask, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getTaskTx(ctx, s.db, id)
}

// FindOpenTask retrieves the pending or needs_info task for a source file.
func (s *SQLiteStorage) FindOpenTask(ctx context.Context, sourceFileID string) (*model.ReviewTask, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.findOpenTaskTx(ctx, s.db, sourceFileID)
}

// ListTasks lists tasks matching filter, newest first.
func (s *SQLiteStorage) ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.ReviewTask, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listTasksTx(ctx, s.db, filter)
}

// ListReviewLogs lists review log entries in append order.
func (s *SQLiteStorage) ListReviewLogs(ctx context.Context, taskID string) ([]model.ReviewLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listReviewLogsTx(ctx, s.db, taskID)
}

// ListExtractionLogs lists extraction log entries in append order.
func (s *SQLiteStorage) ListExtractionLogs(ctx context.Context, sourceFileID string) ([]model.ExtractionLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listExtractionLogsTx(ctx, s.db, sourceFileID)
}

// CreateTask inserts a task and its comments.
func (s *SQLiteStorage) CreateTask(ctx context.Context, task *model.ReviewTask) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return s.createTaskTx(ctx, tx, task) })
}

// UpdateTask replaces a task guarded by its revision.
func (s *SQLiteStorage) UpdateTask(ctx context.Context, task *model.ReviewTask, expectedRevision int) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return s.updateTaskTx(ctx, tx, task, expectedRevision) })
}

// AppendReviewLog appends an entry to the review log.
func (s *SQLiteStorage) AppendReviewLog(ctx context.Context, entry *model.ReviewLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.appendReviewLogTx(ctx, s.db, entry)
}

// AppendExtractionLog appends an entry to the extraction log.
func (s *SQLiteStorage) AppendExtractionLog(ctx context.Context, entry *model.ExtractionLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.appendExtractionLogTx(ctx, s.db, entry)
}

func (s *SQLiteStorage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

// sqliteTransaction wraps sql.Tx to implement service.ReviewTx.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
	mu      sync.Mutex
	done    bool
}

func (t *sqliteTransaction) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

func (t *sqliteTransaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

func (t *sqliteTransaction) GetTask(ctx context.Context, id string) (*model.ReviewTask, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getTaskTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) FindOpenTask(ctx context.Context, sourceFileID string) (*model.ReviewTask, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.findOpenTaskTx(ctx, t.tx, sourceFileID)
}

func (t *sqliteTransaction) ListTasks(ctx context.Context, filter model.TaskFilter) ([]model.ReviewTask, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listTasksTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) ListReviewLogs(ctx context.Context, taskID string) ([]model.ReviewLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listReviewLogsTx(ctx, t.tx, taskID)
}

func (t *sqliteTransaction) ListExtractionLogs(ctx context.Context, sourceFileID string) ([]model.ExtractionLog, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listExtractionLogsTx(ctx, t.tx, sourceFileID)
}

func (t *sqliteTransaction) CreateTask(ctx context.Context, task *model.ReviewTask) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.createTaskTx(ctx, t.tx, task)
}

func (t *sqliteTransaction) UpdateTask(ctx context.Context, task *model.ReviewTask, expectedRevision int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.updateTaskTx(ctx, t.tx, task, expectedRevision)
}

func (t *sqliteTransaction) AppendReviewLog(ctx context.Context, entry *model.ReviewLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.appendReviewLogTx(ctx, t.tx, entry)
}

func (t *sqliteTransaction) AppendExtractionLog(ctx context.Context, entry *model.ExtractionLog) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.appendExtractionLogTx(ctx, t.tx, entry)
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// classify marks busy and locked errors as retryable and maps integrity
// failures onto the common sentinels.
func classify(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return &common.RetryableError{Err: err, Retryable: true}
	case sqlite3.ErrCorrupt, sqlite3.ErrNotADB:
		return fmt.Errorf("%w: %w", common.ErrDatabaseCorrupted, err)
	case sqlite3.ErrConstraint:
		if strings.Contains(sqliteErr.Error(), "append-only") {
			return fmt.Errorf("%w: %w", common.ErrDataIntegrity, err)
		}
		return fmt.Errorf("%w: %w", common.ErrDuplicateEntry, err)
	default:
		return err
	}
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on column.
func isUniqueViolation(err error, column string) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}
	return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed") &&
		strings.Contains(sqliteErr.Error(), column)
}
