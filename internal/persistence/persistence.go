// Package persistence defines the storage contract the scheduler and worker
// consume: a DAG store, a durable task queue, and a status store. Two
// implementations satisfy it: internal/persistence/memory (single process)
// and internal/persistence/remote (Redis-backed).
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowforge/orchestrator/internal/runplan"
	"github.com/flowforge/orchestrator/internal/status"
)

// ErrorKind identifies the class of persistence failure.
type ErrorKind string

const (
	KindBackendUnavailable ErrorKind = "BackendUnavailable"
	KindSerializationError ErrorKind = "SerializationError"
)

// Error wraps a persistence failure with its kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewBackendUnavailableError wraps err as a BackendUnavailable failure for
// the named operation.
func NewBackendUnavailableError(op string, err error) *Error {
	return &Error{Kind: KindBackendUnavailable, Op: op, Err: err}
}

// NewSerializationError wraps err as a SerializationError failure for the
// named operation.
func NewSerializationError(op string, err error) *Error {
	return &Error{Kind: KindSerializationError, Op: op, Err: err}
}

// StatusRecord is the shape returned by GetStatus: a status plus whatever
// metadata was written alongside it (task_id/run_id for task keys,
// dag_id/run_id/task_count/task_ids for run keys, plus stdout/stderr/
// duration/exit_code on terminal writes).
type StatusRecord struct {
	Status status.Status  `json:"status"`
	Meta   map[string]any `json:"-"`
}

// MarshalJSON flattens Status and Meta into a single JSON object, matching
// the wire shape in spec.md §6 ({status, ...meta}).
func (r StatusRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(r.Meta)+1)
	for k, v := range r.Meta {
		flat[k] = v
	}
	flat["status"] = string(r.Status)
	return json.Marshal(flat)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *StatusRecord) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if s, ok := flat["status"].(string); ok {
		r.Status = status.Status(s)
	}
	delete(flat, "status")
	r.Meta = flat
	return nil
}

// Empty reports whether the record carries no status at all (the "absent"
// case GetStatus returns for an unwritten key).
func (r StatusRecord) Empty() bool {
	return r.Status == "" && len(r.Meta) == 0
}

// Backend is the persistence contract consumed by the scheduler and worker.
// Every operation is safe for concurrent callers and takes a context so
// callers can bound blocking operations (PopTask in particular).
type Backend interface {
	// SaveDAG persists a DAG document under dagID, overwriting any prior
	// value.
	SaveDAG(ctx context.Context, dagID string, blob []byte) error
	// LoadDAG returns the stored document, or ok=false if absent.
	LoadDAG(ctx context.Context, dagID string) (blob []byte, ok bool, err error)
	// ListDAGs returns every registered DAG id.
	ListDAGs(ctx context.Context) ([]string, error)

	// PushTask enqueues a task-run payload without waiting for a consumer.
	// The in-memory backend's queue is bounded, so there it blocks while
	// the buffer is full, until ctx is done.
	PushTask(ctx context.Context, payload *runplan.TaskPayload) error
	// PopTask blocks up to timeout for a payload to arrive, returning
	// ok=false iff none arrived within the timeout.
	PopTask(ctx context.Context, timeout time.Duration) (payload *runplan.TaskPayload, ok bool, err error)

	// SaveStatus overwrites the status record stored at key.
	SaveStatus(ctx context.Context, key string, s status.Status, meta map[string]any) error
	// GetStatus returns the record at key, or an Empty() record if absent.
	GetStatus(ctx context.Context, key string) (StatusRecord, error)
	// ListRuns returns every run id that has run metadata.
	ListRuns(ctx context.Context) ([]string, error)
	// ListAttempts returns every attempt status record for a task within a
	// run, ordered by attempt number.
	ListAttempts(ctx context.Context, runID, taskID string) ([]StatusRecord, error)
}

// RunStatusKey returns the canonical key for a run's own status record.
func RunStatusKey(runID string) string { return "run:" + runID }

// CanonicalTaskKey returns the canonical (latest-attempt) status key for a
// task within a run.
func CanonicalTaskKey(runID, taskID string) string { return runID + ":" + taskID }

// AttemptTaskKey returns the per-attempt status key for a task within a run.
func AttemptTaskKey(runID, taskID string, attempt int) string {
	return fmt.Sprintf("%s:%s:%d", runID, taskID, attempt)
}
