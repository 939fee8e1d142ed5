// Package scheduler turns a validated DAG into a run: it persists the DAG
// document and run metadata, then enqueues every dependency-free task.
// Grounded on original_source/src/orchestrator/scheduler.py.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowforge/orchestrator/internal/digraph"
	"github.com/flowforge/orchestrator/internal/logger"
	"github.com/flowforge/orchestrator/internal/persistence"
	"github.com/flowforge/orchestrator/internal/runplan"
	"github.com/flowforge/orchestrator/internal/status"
)

// Scheduler schedules DAG runs against a persistence.Backend.
type Scheduler struct {
	backend persistence.Backend
}

// New returns a Scheduler backed by backend.
func New(backend persistence.Backend) *Scheduler {
	return &Scheduler{backend: backend}
}

// ScheduleDAG validates d, builds its run-task payloads, persists the DAG
// document and run metadata, and enqueues the tasks with no dependencies —
// the roots of the graph. Every enqueued task's canonical and per-attempt
// status is written as queued before it is pushed onto the queue, so a
// concurrent reader never observes a queued payload without a matching
// status record.
func (s *Scheduler) ScheduleDAG(ctx context.Context, d *digraph.DAG, runID string) error {
	payloads, err := runplan.BuildRunTasks(d, runID)
	if err != nil {
		return err
	}

	blob, err := json.Marshal(d)
	if err != nil {
		return persistence.NewSerializationError("ScheduleDAG", err)
	}
	if err := s.backend.SaveDAG(ctx, d.ID, blob); err != nil {
		return err
	}

	taskIDs := make([]string, 0, len(d.TaskOrder))
	taskIDs = append(taskIDs, d.TaskOrder...)
	runMeta := map[string]any{
		"dag_id":     d.ID,
		"run_id":     runID,
		"task_count": len(payloads),
		"task_ids":   taskIDs,
	}
	logger.Info(ctx, "scheduling dag run", "dag_id", d.ID, "run_id", runID, "task_count", len(payloads))
	if err := s.backend.SaveStatus(ctx, persistence.RunStatusKey(runID), status.Scheduled, runMeta); err != nil {
		return err
	}

	for _, p := range payloads {
		if len(p.Dependencies) > 0 {
			continue
		}
		if err := s.enqueueQueued(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// enqueueQueued writes the canonical and per-attempt queued status for p,
// then pushes it onto the queue. Status is written first so a worker that
// pops the payload immediately never finds an absent status record.
func (s *Scheduler) enqueueQueued(ctx context.Context, p *runplan.TaskPayload) error {
	meta := map[string]any{
		"task_id":     p.TaskID,
		"run_id":      p.RunID,
		"task_run_id": p.TaskRunID,
	}
	logger.Debug(ctx, "enqueueing task", "task_id", p.TaskID, "run_id", p.RunID)

	if err := s.backend.SaveStatus(ctx, persistence.AttemptTaskKey(p.RunID, p.TaskID, p.Attempt), status.Queued, meta); err != nil {
		return err
	}
	if err := s.backend.SaveStatus(ctx, persistence.CanonicalTaskKey(p.RunID, p.TaskID), status.Queued, meta); err != nil {
		return err
	}
	return s.backend.PushTask(ctx, p)
}

// CancelRun marks runID cancelled: its run-level status, and the canonical
// status of every task that has not already reached a terminal state. It
// does not touch in-flight subprocesses — cancellation is best-effort at the
// status layer, matching the original's worker-polls-status cancellation
// model.
func (s *Scheduler) CancelRun(ctx context.Context, runID string) error {
	runRec, err := s.backend.GetStatus(ctx, persistence.RunStatusKey(runID))
	if err != nil {
		return err
	}
	if runRec.Empty() {
		return fmt.Errorf("scheduler: run %q not found", runID)
	}

	taskIDs, _ := runRec.Meta["task_ids"].([]any)
	if taskIDs == nil {
		if ids, ok := runRec.Meta["task_ids"].([]string); ok {
			for _, id := range ids {
				taskIDs = append(taskIDs, id)
			}
		}
	}

	for _, raw := range taskIDs {
		taskID, ok := raw.(string)
		if !ok {
			continue
		}
		key := persistence.CanonicalTaskKey(runID, taskID)
		rec, err := s.backend.GetStatus(ctx, key)
		if err != nil {
			return err
		}
		if !rec.Empty() && rec.Status.IsTerminal() {
			continue
		}
		if err := s.backend.SaveStatus(ctx, key, status.Cancelled, map[string]any{"task_id": taskID, "run_id": runID}); err != nil {
			return err
		}
	}

	return s.backend.SaveStatus(ctx, persistence.RunStatusKey(runID), status.Cancelled, runRec.Meta)
}
