package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/model"
)

const taskColumns = `id, source_file_id, status, reason, assigned_to, reviewer,
	proposed_specifications, finalized_specifications, confidence, source_version,
	revision, created_at, updated_at, resolved_at`

func (s *SQLiteStorage) getTaskTx(ctx context.Context, q queryable, id string) (*model.ReviewTask, error) {
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM review_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review task %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review task %s: %w", id, classify(err))
	}

	if err := s.loadComments(ctx, q, []*model.ReviewTask{task}); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *SQLiteStorage) findOpenTaskTx(ctx context.Context, q queryable, sourceFileID string) (*model.ReviewTask, error) {
	if err := validateString(sourceFileID, "sourceFileID"); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM review_tasks
		WHERE source_file_id = ? AND status IN ('pending', 'needs_info')`, sourceFileID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open review task for %s: %w", sourceFileID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open review task: %w", classify(err))
	}

	if err := s.loadComments(ctx, q, []*model.ReviewTask{task}); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *SQLiteStorage) listTasksTx(ctx context.Context, q queryable, filter model.TaskFilter) ([]model.ReviewTask, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AssignedTo != "" {
		where = append(where, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}
	if filter.SourceFileID != "" {
		where = append(where, "source_file_id = ?")
		args = append(args, filter.SourceFileID)
	}
	if filter.OpenOnly {
		where = append(where, "status IN ('pending', 'needs_info')")
	}

	query := `SELECT ` + taskColumns + ` FROM review_tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list review tasks: %w", classify(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", "error", err)
		}
	}()

	tasks := make([]*model.ReviewTask, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review tasks: %w", err)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close rows: %w", err)
	}

	if err := s.loadComments(ctx, q, tasks); err != nil {
		return nil, err
	}

	out := make([]model.ReviewTask, len(tasks))
	for i, task := range tasks {
		out[i] = *task
	}
	return out, nil
}

func (s *SQLiteStorage) createTaskTx(ctx context.Context, q queryable, task *model.ReviewTask) error {
	if err := validateTask(task); err != nil {
		return err
	}

	if task.IsOpen() {
		existing, err := s.findOpenTaskTx(ctx, q, task.SourceFileID)
		switch {
		case err == nil:
			return duplicateOpenTask(existing, task.SourceFileID)
		case !errors.Is(err, common.ErrNotFound):
			return err
		}
	}

	args, err := taskArgs(task)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `INSERT INTO review_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if isUniqueViolation(err, "review_tasks.source_file_id") {
			return duplicateOpenTask(&model.ReviewTask{Status: model.ReviewPending}, task.SourceFileID)
		}
		return fmt.Errorf("failed to create review task %s: %w", task.ID, classify(err))
	}

	return s.replaceComments(ctx, q, task)
}

func (s *SQLiteStorage) updateTaskTx(ctx context.Context, q queryable, task *model.ReviewTask, expectedRevision int) error {
	if err := validateTask(task); err != nil {
		return err
	}

	proposed, err := json.Marshal(task.ProposedSpecifications)
	if err != nil {
		return fmt.Errorf("failed to encode proposed specifications: %w", err)
	}
	finalized, err := marshalOptional(task.FinalizedSpecifications)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE review_tasks
		SET status = ?, reason = ?, assigned_to = ?, reviewer = ?,
			proposed_specifications = ?, finalized_specifications = ?, confidence = ?,
			source_version = ?, revision = ?, updated_at = ?, resolved_at = ?
		WHERE id = ? AND revision = ? AND source_file_id = ?`,
		string(task.Status), string(task.Reason), task.AssignedTo, task.Reviewer,
		string(proposed), finalized, task.Confidence,
		task.SourceVersion, expectedRevision+1, unixNanos(task.UpdatedAt), optionalNanos(task.ResolvedAt),
		task.ID, expectedRevision, task.SourceFileID,
	)
	if err != nil {
		if isUniqueViolation(err, "review_tasks.source_file_id") {
			return duplicateOpenTask(&model.ReviewTask{Status: model.ReviewPending}, task.SourceFileID)
		}
		return fmt.Errorf("failed to update review task %s: %w", task.ID, classify(err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return s.explainMissedUpdate(ctx, q, task, expectedRevision)
	}

	task.Revision = expectedRevision + 1
	return s.replaceComments(ctx, q, task)
}

// explainMissedUpdate works out why a guarded UPDATE touched no rows.
func (s *SQLiteStorage) explainMissedUpdate(ctx context.Context, q queryable, task *model.ReviewTask, expectedRevision int) error {
	var (
		revision     int
		status       string
		sourceFileID string
	)
	err := q.QueryRowContext(ctx, `SELECT revision, status, source_file_id FROM review_tasks WHERE id = ?`, task.ID).
		Scan(&revision, &status, &sourceFileID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("review task %s: %w", task.ID, common.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read review task %s: %w", task.ID, classify(err))
	}
	if revision != expectedRevision {
		return &common.StateError{
			TaskID:    task.ID,
			From:      status,
			Attempted: fmt.Sprintf("update revision %d (stored %d)", expectedRevision, revision),
			Err:       common.ErrConcurrentModification,
		}
	}
	if sourceFileID != task.SourceFileID {
		return fmt.Errorf("%w: source file of task %s cannot change", ErrInvalidTask, task.ID)
	}
	return fmt.Errorf("review task %s: update affected no rows", task.ID)
}

func (s *SQLiteStorage) replaceComments(ctx context.Context, q queryable, task *model.ReviewTask) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM review_comments WHERE task_id = ?`, task.ID); err != nil {
		return fmt.Errorf("failed to clear comments: %w", classify(err))
	}
	for i, c := range task.Comments {
		_, err := q.ExecContext(ctx, `
			INSERT INTO review_comments (task_id, position, author, body, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			task.ID, i, c.Author, c.Body, unixNanos(c.CreatedAt))
		if err != nil {
			return fmt.Errorf("failed to save comment: %w", classify(err))
		}
	}
	return nil
}

func (s *SQLiteStorage) loadComments(ctx context.Context, q queryable, tasks []*model.ReviewTask) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[string]*model.ReviewTask, len(tasks))
	placeholders := make([]string, 0, len(tasks))
	args := make([]any, 0, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
		placeholders = append(placeholders, "?")
		args = append(args, task.ID)
	}

	// #nosec G202 - placeholders are only question marks
	query := `SELECT task_id, author, body, created_at FROM review_comments
		WHERE task_id IN (` + strings.Join(placeholders, ",") + `)
		ORDER BY task_id, position`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to load comments: %w", classify(err))
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", "error", err)
		}
	}()

	for rows.Next() {
		var (
			taskID  string
			comment model.Comment
			created int64
		)
		if err := rows.Scan(&taskID, &comment.Author, &comment.Body, &created); err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		comment.CreatedAt = fromNanos(created)
		if task, ok := byID[taskID]; ok {
			task.Comments = append(task.Comments, comment)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*model.ReviewTask, error) {
	var (
		task       model.ReviewTask
		status     string
		reason     string
		proposed   string
		finalized  sql.NullString
		createdAt  int64
		updatedAt  int64
		resolvedAt sql.NullInt64
	)
	err := row.Scan(
		&task.ID, &task.SourceFileID, &status, &reason, &task.AssignedTo, &task.Reviewer,
		&proposed, &finalized, &task.Confidence, &task.SourceVersion,
		&task.Revision, &createdAt, &updatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = model.ReviewStatus(status)
	task.Reason = model.ReviewReason(reason)
	task.CreatedAt = fromNanos(createdAt)
	task.UpdatedAt = fromNanos(updatedAt)
	if resolvedAt.Valid {
		t := fromNanos(resolvedAt.Int64)
		task.ResolvedAt = &t
	}

	if err := json.Unmarshal([]byte(proposed), &task.ProposedSpecifications); err != nil {
		return nil, fmt.Errorf("%w: proposed specifications of task %s: %w", common.ErrDatabaseCorrupted, task.ID, err)
	}
	if finalized.Valid {
		var specs model.ProductSpecifications
		if err := json.Unmarshal([]byte(finalized.String), &specs); err != nil {
			return nil, fmt.Errorf("%w: finalized specifications of task %s: %w", common.ErrDatabaseCorrupted, task.ID, err)
		}
		task.FinalizedSpecifications = &specs
	}
	return &task, nil
}

func taskArgs(task *model.ReviewTask) ([]any, error) {
	proposed, err := json.Marshal(task.ProposedSpecifications)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proposed specifications: %w", err)
	}
	finalized, err := marshalOptional(task.FinalizedSpecifications)
	if err != nil {
		return nil, err
	}
	return []any{
		task.ID, task.SourceFileID, string(task.Status), string(task.Reason), task.AssignedTo, task.Reviewer,
		string(proposed), finalized, task.Confidence, task.SourceVersion,
		task.Revision, unixNanos(task.CreatedAt), unixNanos(task.UpdatedAt), optionalNanos(task.ResolvedAt),
	}, nil
}

func marshalOptional(specs *model.ProductSpecifications) (sql.NullString, error) {
	if specs == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode finalized specifications: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func duplicateOpenTask(existing *model.ReviewTask, sourceFileID string) error {
	return &common.StateError{
		TaskID:    existing.ID,
		From:      string(existing.Status),
		Attempted: "open a second task for " + sourceFileID,
		Err:       common.ErrDuplicateOpenTask,
	}
}

func unixNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func optionalNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
