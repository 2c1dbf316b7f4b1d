package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Snapshot errors.
var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotCorrupted = errors.New("snapshot integrity check failed")
	ErrSnapshotExists    = errors.New("snapshot already exists")
	ErrInvalidSnapshot   = errors.New("invalid snapshot name")
)

const maxAutoSnapshots = 5

// SnapshotManager copies the review database to named snapshot files that
// sit next to it in a snapshots directory.
type SnapshotManager struct {
	db           *sql.DB
	dbPath       string
	snapshotsDir string
	now          func() time.Time
}

// SnapshotInfo describes one snapshot. It is also written as a JSON sidecar
// so a snapshot can be listed without opening it.
type SnapshotInfo struct {
	CreatedAt          time.Time `json:"created_at"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	FileSize           int64     `json:"file_size"`
	TaskCount          int       `json:"task_count"`
	ReviewLogCount     int       `json:"review_log_count"`
	ExtractionLogCount int       `json:"extraction_log_count"`
	SchemaVersion      int       `json:"schema_version"`
	IsAuto             bool      `json:"is_auto"`
}

// NewSnapshotManager creates a snapshot manager for a file-backed store.
func NewSnapshotManager(store *SQLiteStorage) (*SnapshotManager, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store", ErrNilParameter)
	}
	if store.dbPath == ":memory:" {
		return nil, errors.New("snapshots require a file-backed database")
	}

	dir, err := filepath.Abs(filepath.Join(filepath.Dir(store.dbPath), "snapshots"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve snapshots directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &SnapshotManager{
		db:           store.db,
		dbPath:       store.dbPath,
		snapshotsDir: dir,
		now:          time.Now,
	}, nil
}

// Dir returns the directory snapshots are written to.
func (sm *SnapshotManager) Dir() string {
	return sm.snapshotsDir
}

// Create writes a consistent copy of the database under name.
func (sm *SnapshotManager) Create(ctx context.Context, name, description string) (*SnapshotInfo, error) {
	return sm.create(ctx, name, description, false)
}

func (sm *SnapshotManager) create(ctx context.Context, name, description string, auto bool) (*SnapshotInfo, error) {
	if name == "" {
		name = "snapshot-" + sm.now().Format("2006-01-02-150405")
	}
	if err := validateSnapshotName(name); err != nil {
		return nil, err
	}

	snapshotPath := sm.snapshotPath(name)
	if _, err := os.Stat(snapshotPath); err == nil {
		return nil, ErrSnapshotExists
	}

	info := SnapshotInfo{
		Name:        name,
		Description: description,
		CreatedAt:   sm.now().UTC(),
		IsAuto:      auto,
	}
	if err := sm.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&info.SchemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	sm.collectRowCounts(ctx, &info)

	if err := sm.backupDatabase(ctx, snapshotPath); err != nil {
		return nil, fmt.Errorf("failed to back up database: %w", err)
	}

	stat, err := os.Stat(snapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	info.FileSize = stat.Size()

	if err := sm.saveMetadata(info); err != nil {
		if rmErr := os.Remove(snapshotPath); rmErr != nil {
			slog.Error("failed to remove snapshot file after metadata save failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}

	if err := sm.storeMetadataInDB(ctx, info); err != nil {
		// The sidecar is authoritative; the table is only an index.
		slog.Warn("failed to store snapshot metadata in database", "error", err)
	}

	return &info, nil
}

// List returns every snapshot, newest first. Unreadable sidecars are skipped.
func (sm *SnapshotManager) List(_ context.Context) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(sm.snapshotsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	snapshots := make([]SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		info, err := sm.loadMetadata(filepath.Join(sm.snapshotsDir, entry.Name()))
		if err != nil {
			slog.Debug("skipping unreadable snapshot metadata", "file", entry.Name(), "error", err)
			continue
		}
		snapshots = append(snapshots, *info)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// Verify runs an integrity check against a snapshot file.
func (sm *SnapshotManager) Verify(_ context.Context, name string) error {
	if err := validateSnapshotName(name); err != nil {
		return err
	}
	path := sm.snapshotPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("failed to access snapshot: %w", err)
	}
	if err := verifyIntegrity(path); err != nil {
		return fmt.Errorf("%w: %w", ErrSnapshotCorrupted, err)
	}
	return nil
}

// Restore replaces the database file with a snapshot. It closes the store's
// connection; the caller must open a new store afterwards.
func (sm *SnapshotManager) Restore(ctx context.Context, name string) error {
	if err := sm.Verify(ctx, name); err != nil {
		return err
	}

	if err := sm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	backupPath := sm.dbPath + ".restore-backup"
	if err := copyFile(sm.dbPath, backupPath); err != nil {
		return fmt.Errorf("failed to back up current database: %w", err)
	}

	if err := copyFile(sm.snapshotPath(name), sm.dbPath); err != nil {
		if restoreErr := copyFile(backupPath, sm.dbPath); restoreErr != nil {
			slog.Error("failed to put back database after restore failure", "error", restoreErr)
		}
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	// Stale WAL files belong to the replaced database.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(sm.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove stale WAL file", "error", err)
		}
	}

	if err := os.Remove(backupPath); err != nil {
		slog.Error("failed to remove backup file", "error", err)
	}
	return nil
}

// Delete removes a snapshot and its metadata.
func (sm *SnapshotManager) Delete(ctx context.Context, name string) error {
	if err := validateSnapshotName(name); err != nil {
		return err
	}

	path := sm.snapshotPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("failed to access snapshot: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove snapshot file: %w", err)
	}
	if err := os.Remove(sm.metadataPath(name)); err != nil {
		slog.Debug("failed to remove metadata file", "error", err, "snapshot", name)
	}
	if _, err := sm.db.ExecContext(ctx, "DELETE FROM snapshot_metadata WHERE name = ?", name); err != nil {
		slog.Debug("failed to remove snapshot metadata from database", "error", err, "snapshot", name)
	}
	return nil
}

// AutoSnapshot takes a snapshot before a risky operation and keeps only the
// most recent automatic ones.
func (sm *SnapshotManager) AutoSnapshot(ctx context.Context, operation string) (*SnapshotInfo, error) {
	name := fmt.Sprintf("auto-%s-%s", operation, sm.now().Format("2006-01-02-150405.000"))
	info, err := sm.create(ctx, name, "Automatic snapshot before "+operation, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create automatic snapshot: %w", err)
	}

	if err := sm.cleanupAutoSnapshots(ctx); err != nil {
		slog.Warn("failed to clean up old automatic snapshots", "error", err)
	}
	return info, nil
}

func (sm *SnapshotManager) cleanupAutoSnapshots(ctx context.Context) error {
	snapshots, err := sm.List(ctx)
	if err != nil {
		return err
	}

	autoCount := 0
	for _, snap := range snapshots {
		if !snap.IsAuto {
			continue
		}
		autoCount++
		if autoCount > maxAutoSnapshots {
			if err := sm.Delete(ctx, snap.Name); err != nil {
				slog.Debug("failed to delete old automatic snapshot", "error", err, "snapshot", snap.Name)
			}
		}
	}
	return nil
}

func (sm *SnapshotManager) collectRowCounts(ctx context.Context, info *SnapshotInfo) {
	counts := []struct {
		dest  *int
		query string
	}{
		{&info.TaskCount, "SELECT COUNT(*) FROM review_tasks"},
		{&info.ReviewLogCount, "SELECT COUNT(*) FROM review_logs"},
		{&info.ExtractionLogCount, "SELECT COUNT(*) FROM extraction_logs"},
	}
	for _, c := range counts {
		if err := sm.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			// Tables are missing before the first migration.
			*c.dest = 0
		}
	}
}

func (sm *SnapshotManager) backupDatabase(ctx context.Context, destPath string) error {
	if _, err := sm.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}

	if strings.ContainsAny(destPath, `'";`) || !filepath.IsAbs(destPath) || strings.Contains(destPath, "..") {
		return fmt.Errorf("invalid destination path: %s", destPath)
	}
	// #nosec G201 - destPath is validated above
	if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", destPath)); err != nil {
		slog.Warn("VACUUM INTO failed, falling back to file copy", "error", err)
		return copyFile(sm.dbPath, destPath)
	}
	return nil
}

func (sm *SnapshotManager) storeMetadataInDB(ctx context.Context, info SnapshotInfo) error {
	_, err := sm.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshot_metadata
		(name, description, created_at, file_size, task_count, review_log_count,
		 extraction_log_count, schema_version, is_auto)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.Name, info.Description, info.CreatedAt.UnixNano(), info.FileSize,
		info.TaskCount, info.ReviewLogCount, info.ExtractionLogCount,
		info.SchemaVersion, info.IsAuto,
	)
	return err
}

func (sm *SnapshotManager) saveMetadata(info SnapshotInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	path := sm.metadataPath(info.Name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func (sm *SnapshotManager) loadMetadata(path string) (*SnapshotInfo, error) {
	// #nosec G304 - path is built from the snapshots directory listing
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var info SnapshotInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (sm *SnapshotManager) snapshotPath(name string) string {
	return filepath.Join(sm.snapshotsDir, name+".db")
}

func (sm *SnapshotManager) metadataPath(name string) string {
	return filepath.Join(sm.snapshotsDir, name+".meta.json")
}

func validateSnapshotName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, `/\'";`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidSnapshot, name)
	}
	return nil
}

func verifyIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

func copyFile(src, dst string) error {
	tmpDst := dst + ".tmp"

	// #nosec G304 - paths come from the manager, never from user input
	source, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			slog.Error("failed to close source file", "error", closeErr)
		}
	}()

	// #nosec G304 - see above
	destination, err := os.Create(filepath.Clean(tmpDst))
	if err != nil {
		return err
	}

	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		_ = os.Remove(tmpDst)
		return err
	}
	if err := destination.Close(); err != nil {
		_ = os.Remove(tmpDst)
		return err
	}
	return os.Rename(tmpDst, dst)
}
