package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/model"
	"github.com/Veraticus/pouchspec/internal/service"
)

// ErrClosed is returned by a store after Close.
var ErrClosed = errors.New("storage closed")

// MemoryStore implements service.ReviewStore in process memory. A
// transaction holds the write lock from BeginTx until Commit or Rollback, so
// transactions are fully serialized. Calling store methods directly while
// holding a transaction on the same goroutine deadlocks; use the transaction.
type MemoryStore struct {
	state  *memState
	mu     sync.RWMutex
	closed bool
}

type memState struct {
	tasks          map[string]model.ReviewTask
	reviewLogs     []model.ReviewLog
	extractionLogs []model.ExtractionLog
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func newMemState() *memState {
	return &memState{tasks: make(map[string]model.ReviewTask)}
}

// snapshot copies the state for a transaction. Stored tasks are never
// mutated in place, so sharing their backing data is safe. The log slices
// are capped so appends inside the transaction never touch the original.
func (st *memState) snapshot() *memState {
	return &memState{
		tasks:          maps.Clone(st.tasks),
		reviewLogs:     st.reviewLogs[:len(st.reviewLogs):len(st.reviewLogs)],
		extractionLogs: st.extractionLogs[:len(st.extractionLogs):len(st.extractionLogs)],
	}
}

// Close releases the store. Later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// BeginTx starts a transaction and blocks until no other transaction is open.
func (s *MemoryStore) BeginTx(ctx context.Context) (service.ReviewTx, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	return &memoryTx{store: s, state: s.state.snapshot()}, nil
}

func (s *MemoryStore) read(ctx context.Context, fn func(*memState) error) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn(s.state)
}

func (s *MemoryStore) write(ctx context.Context, fn func(*memState) error) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next := s.state.snapshot()
	if err := fn(next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// GetTask returns a copy of the task with the given id.
func (s *MemoryStore) GetTask(ctx context.Context, id string) (task *model.ReviewTask, err error) {
	err = s.read(ctx, func(st *memState) error {
		task, err = st.getTask(id)
		return err
	})
	return task, err
}

// FindOpenTask returns the open task for a source file.
func (s *MemoryStore) FindOpenTask(ctx context.Context, sourceFileID string) (task *model.ReviewTask, err error) {
	err = s.read(ctx, func(st *memState) error {
		task, err = st.findOpenTask(sourceFileID)
		return err
	})
	return task, err
}

// ListTasks returns matching tasks, newest first.
func (s *MemoryStore) ListTasks(ctx context.Context, filter model.TaskFilter) (tasks []model.ReviewTask, err error) {
	err = s.read(ctx, func(st *memState) error {
		tasks = st.listTasks(filter)
		return nil
	})
	return tasks, err
}

// ListReviewLogs returns review log entries in append order.
func (s *MemoryStore) ListReviewLogs(ctx context.Context, taskID string) (logs []model.ReviewLog, err error) {
	err = s.read(ctx, func(st *memState) error {
		logs = st.listReviewLogs(taskID)
		return nil
	})
	return logs, err
}

// ListExtractionLogs returns extraction log entries in append order.
func (s *MemoryStore) ListExtractionLogs(ctx context.Context, sourceFileID string) (logs []model.ExtractionLog, err error) {
	err = s.read(ctx, func(st *memState) error {
		logs = st.listExtractionLogs(sourceFileID)
		return nil
	})
	return logs, err
}

// CreateTask inserts a task.
func (s *MemoryStore) CreateTask(ctx context.Context, task *model.ReviewTask) error {
	return s.write(ctx, func(st *memState) error { return st.createTask(task) })
}

// UpdateTask replaces a task guarded by its revision.
func (s *MemoryStore) UpdateTask(ctx context.Context, task *model.ReviewTask, expectedRevision int) error {
	return s.write(ctx, func(st *memState) error { return st.updateTask(task, expectedRevision) })
}

// AppendReviewLog appends a review log entry.
func (s *MemoryStore) AppendReviewLog(ctx context.Context, entry *model.ReviewLog) error {
	return s.write(ctx, func(st *memState) error { return st.appendReviewLog(entry) })
}

// AppendExtractionLog appends an extraction log entry.
func (s *MemoryStore) AppendExtractionLog(ctx context.Context, entry *model.ExtractionLog) error {
	return s.write(ctx, func(st *memState) error { return st.appendExtractionLog(entry) })
}

// memoryTx works on a private snapshot that replaces the store state on commit.
type memoryTx struct {
	store *MemoryStore
	state *memState
	done  bool
	mu    sync.Mutex
}

func (t *memoryTx) use(ctx context.Context, fn func(*memState) error) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	return fn(t.state)
}

func (t *memoryTx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.store.state = t.state
	t.store.mu.Unlock()
	return nil
}

func (t *memoryTx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memoryTx) GetTask(ctx context.Context, id string) (task *model.ReviewTask, err error) {
	err = t.use(ctx, func(st *memState) error {
		task, err = st.getTask(id)
		return err
	})
	return task, err
}

func (t *memoryTx) FindOpenTask(ctx context.Context, sourceFileID string) (task *model.ReviewTask, err error) {
	err = t.use(ctx, func(st *memState) error {
		task, err = st.findOpenTask(sourceFileID)
		return err
	})
	return task, err
}

func (t *memoryTx) ListTasks(ctx context.Context, filter model.TaskFilter) (tasks []model.ReviewTask, err error) {
	err = t.use(ctx, func(st *memState) error {
		tasks = st.listTasks(filter)
		return nil
	})
	return tasks, err
}

func (t *memoryTx) ListReviewLogs(ctx context.Context, taskID string) (logs []model.ReviewLog, err error) {
	err = t.use(ctx, func(st *memState) error {
		logs = st.listReviewLogs(taskID)
		return nil
	})
	return logs, err
}

func (t *memoryTx) ListExtractionLogs(ctx context.Context, sourceFileID string) (logs []model.ExtractionLog, err error) {
	err = t.use(ctx, func(st *memState) error {
		logs = st.listExtractionLogs(sourceFileID)
		return nil
	})
	return logs, err
}

func (t *memoryTx) CreateTask(ctx context.Context, task *model.ReviewTask) error {
	return t.use(ctx, func(st *memState) error { return st.createTask(task) })
}

func (t *memoryTx) UpdateTask(ctx context.Context, task *model.ReviewTask, expectedRevision int) error {
	return t.use(ctx, func(st *memState) error { return st.updateTask(task, expectedRevision) })
}

func (t *memoryTx) AppendReviewLog(ctx context.Context, entry *model.ReviewLog) error {
	return t.use(ctx, func(st *memState) error { return st.appendReviewLog(entry) })
}

func (t *memoryTx) AppendExtractionLog(ctx context.Context, entry *model.ExtractionLog) error {
	return t.use(ctx, func(st *memState) error { return st.appendExtractionLog(entry) })
}

func (st *memState) getTask(id string) (*model.ReviewTask, error) {
	task, ok := st.tasks[id]
	if !ok {
		return nil, fmt.Errorf("review task %s: %w", id, common.ErrNotFound)
	}
	out := task.Clone()
	return &out, nil
}

func (st *memState) findOpenTask(sourceFileID string) (*model.ReviewTask, error) {
	for _, task := range st.tasks {
		if task.SourceFileID == sourceFileID && task.IsOpen() {
			out := task.Clone()
			return &out, nil
		}
	}
	return nil, fmt.Errorf("open review task for %s: %w", sourceFileID, common.ErrNotFound)
}

func (st *memState) listTasks(filter model.TaskFilter) []model.ReviewTask {
	out := make([]model.ReviewTask, 0, len(st.tasks))
	for _, task := range st.tasks {
		if filter.Matches(task) {
			out = append(out, task.Clone())
		}
	}
	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

func (st *memState) listReviewLogs(taskID string) []model.ReviewLog {
	out := make([]model.ReviewLog, 0)
	for _, entry := range st.reviewLogs {
		if taskID == "" || entry.TaskID == taskID {
			out = append(out, entry)
		}
	}
	return out
}

func (st *memState) listExtractionLogs(sourceFileID string) []model.ExtractionLog {
	out := make([]model.ExtractionLog, 0)
	for _, entry := range st.extractionLogs {
		if sourceFileID == "" || entry.Payload.SourceFileID == sourceFileID {
			out = append(out, entry)
		}
	}
	return out
}

func (st *memState) createTask(task *model.ReviewTask) error {
	if err := validateTask(task); err != nil {
		return err
	}
	if _, exists := st.tasks[task.ID]; exists {
		return fmt.Errorf("review task %s: %w", task.ID, common.ErrDuplicateEntry)
	}
	if task.IsOpen() {
		for _, other := range st.tasks {
			if other.SourceFileID == task.SourceFileID && other.IsOpen() {
				return &common.StateError{
					TaskID:    other.ID,
					From:      string(other.Status),
					Attempted: "open a second task for " + task.SourceFileID,
					Err:       common.ErrDuplicateOpenTask,
				}
			}
		}
	}
	st.tasks[task.ID] = task.Clone()
	return nil
}

func (st *memState) updateTask(task *model.ReviewTask, expectedRevision int) error {
	if err := validateTask(task); err != nil {
		return err
	}
	current, ok := st.tasks[task.ID]
	if !ok {
		return fmt.Errorf("review task %s: %w", task.ID, common.ErrNotFound)
	}
	if current.Revision != expectedRevision {
		return &common.StateError{
			TaskID:    task.ID,
			From:      string(current.Status),
			Attempted: fmt.Sprintf("update revision %d (stored %d)", expectedRevision, current.Revision),
			Err:       common.ErrConcurrentModification,
		}
	}
	if task.SourceFileID != current.SourceFileID {
		return fmt.Errorf("%w: source file of task %s cannot change", ErrInvalidTask, task.ID)
	}
	task.Revision = expectedRevision + 1
	st.tasks[task.ID] = task.Clone()
	return nil
}

func (st *memState) appendReviewLog(entry *model.ReviewLog) error {
	if err := validateReviewLog(entry); err != nil {
		return err
	}
	for _, existing := range st.reviewLogs {
		if existing.ID == entry.ID {
			return fmt.Errorf("review log %s: %w", entry.ID, common.ErrDuplicateEntry)
		}
	}
	st.reviewLogs = append(st.reviewLogs, *entry)
	return nil
}

func (st *memState) appendExtractionLog(entry *model.ExtractionLog) error {
	if err := validateExtractionLog(entry); err != nil {
		return err
	}
	for _, existing := range st.extractionLogs {
		if existing.ID == entry.ID {
			return fmt.Errorf("extraction log %s: %w", entry.ID, common.ErrDuplicateEntry)
		}
	}
	st.extractionLogs = append(st.extractionLogs, *entry)
	return nil
}

// sortNewestFirst orders tasks by creation time descending, id ascending on ties.
func sortNewestFirst(tasks []model.ReviewTask) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID < tasks[j].ID
	})
}

func checkContext(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return ctx.Err()
}
