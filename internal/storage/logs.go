package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/model"
)

func (s *SQLiteStorage) appendReviewLogTx(ctx context.Context, q queryable, entry *model.ReviewLog) error {
	if err := validateReviewLog(entry); err != nil {
		return err
	}

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode review log payload: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO review_logs (id, task_id, correlation_id, action, actor, payload, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.TaskID, entry.CorrelationID, string(entry.Action), entry.Actor,
		string(payload), unixNanos(entry.Timestamp),
	)
	if err != nil {
		if isUniqueViolation(err, "review_logs.id") {
			return fmt.Errorf("review log %s: %w", entry.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to append review log: %w", classify(err))
	}
	return nil
}

func (s *SQLiteStorage) appendExtractionLogTx(ctx context.Context, q queryable, entry *model.ExtractionLog) error {
	if err := validateExtractionLog(entry); err != nil {
		return err
	}

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode extraction log payload: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO extraction_logs (id, source_file_id, correlation_id, action, actor, payload, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Payload.SourceFileID, entry.CorrelationID, string(entry.Action), entry.Actor,
		string(payload), unixNanos(entry.Timestamp),
	)
	if err != nil {
		if isUniqueViolation(err, "extraction_logs.id") {
			return fmt.Errorf("extraction log %s: %w", entry.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to append extraction log: %w", classify(err))
	}
	return nil
}

func (s *SQLiteStorage) listReviewLogsTx(ctx context.Context, q queryable, taskID string) ([]model.ReviewLog, error) {
	query := `SELECT id, task_id, correlation_id, action, actor, payload, timestamp FROM review_logs`
	var args []any
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY seq`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list review logs: %w", classify(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", "error", err)
		}
	}()

	logs := make([]model.ReviewLog, 0)
	for rows.Next() {
		var (
			entry   model.ReviewLog
			action  string
			payload string
			ts      int64
		)
		if err := rows.Scan(&entry.ID, &entry.TaskID, &entry.CorrelationID, &action, &entry.Actor, &payload, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan review log: %w", err)
		}
		entry.Action = model.LogAction(action)
		entry.Timestamp = fromNanos(ts)
		if err := json.Unmarshal([]byte(payload), &entry.Payload); err != nil {
			return nil, fmt.Errorf("%w: review log %s payload: %w", common.ErrDatabaseCorrupted, entry.ID, err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review logs: %w", err)
	}
	return logs, nil
}

func (s *SQLiteStorage) listExtractionLogsTx(ctx context.Context, q queryable, sourceFileID string) ([]model.ExtractionLog, error) {
	query := `SELECT id, correlation_id, action, actor, payload, timestamp FROM extraction_logs`
	var args []any
	if sourceFileID != "" {
		query += ` WHERE source_file_id = ?`
		args = append(args, sourceFileID)
	}
	query += ` ORDER BY seq`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list extraction logs: %w", classify(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", "error", err)
		}
	}()

	logs := make([]model.ExtractionLog, 0)
	for rows.Next() {
		var (
			entry   model.ExtractionLog
			action  string
			payload string
			ts      int64
		)
		if err := rows.Scan(&entry.ID, &entry.CorrelationID, &action, &entry.Actor, &payload, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan extraction log: %w", err)
		}
		entry.Action = model.LogAction(action)
		entry.Timestamp = fromNanos(ts)
		if err := json.Unmarshal([]byte(payload), &entry.Payload); err != nil {
			return nil, fmt.Errorf("%w: extraction log %s payload: %w", common.ErrDatabaseCorrupted, entry.ID, err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating extraction logs: %w", err)
	}
	return logs, nil
}
