// Package worker pops task payloads off the queue, executes them, and fans
// out or retries based on the outcome. Grounded on
// original_source/src/orchestrator/worker.py.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/flowforge/orchestrator/internal/backoff"
	"github.com/flowforge/orchestrator/internal/executor"
	"github.com/flowforge/orchestrator/internal/logger"
	"github.com/flowforge/orchestrator/internal/persistence"
	"github.com/flowforge/orchestrator/internal/runplan"
	"github.com/flowforge/orchestrator/internal/status"
)

// defaultPopTimeout bounds how long a single PopTask call blocks before the
// loop re-checks ctx when the caller doesn't supply its own, matching
// internal/config's default for ORCHESTRATOR_POP_TIMEOUT.
const defaultPopTimeout = 5 * time.Second

// retryBaseDelay is the base of the worker's exponential retry backoff
// (delay = retryBaseDelay * 2^attempt), matching retry_backoff in the
// original.
const retryBaseDelay = 2 * time.Second

// Executor runs a single task payload. executor.Execute satisfies this;
// tests substitute a stub.
type Executor interface {
	Execute(ctx context.Context, payload *runplan.TaskPayload) (*executor.Result, error)
}

type executeFunc func(ctx context.Context, payload *runplan.TaskPayload) (*executor.Result, error)

func (f executeFunc) Execute(ctx context.Context, payload *runplan.TaskPayload) (*executor.Result, error) {
	return f(ctx, payload)
}

// DefaultExecutor adapts executor.Execute to the Executor interface.
var DefaultExecutor Executor = executeFunc(executor.Execute)

// Worker polls the task queue and drives each task's attempt through
// execution, retry, and fan-out.
type Worker struct {
	backend    persistence.Backend
	executor   Executor
	popTimeout time.Duration
}

// New returns a Worker backed by backend, executing tasks with exec (pass
// DefaultExecutor in production). popTimeout bounds each PopTask call in Run;
// a non-positive value falls back to defaultPopTimeout, so production code
// sourcing it from internal/config.Config.PopTimeout and tests passing 0 for
// "don't care" both get a sane value.
func New(backend persistence.Backend, exec Executor, popTimeout time.Duration) *Worker {
	if exec == nil {
		exec = DefaultExecutor
	}
	if popTimeout <= 0 {
		popTimeout = defaultPopTimeout
	}
	return &Worker{backend: backend, executor: exec, popTimeout: popTimeout}
}

// Run polls the queue until ctx is done. Each PopTask call blocks up to
// w.popTimeout so the loop notices ctx cancellation promptly even when the
// queue is idle.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info(ctx, "worker started")
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "worker stopping")
			return ctx.Err()
		default:
		}

		payload, ok, err := w.backend.PopTask(ctx, w.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if !ok {
			continue
		}

		logger.Info(ctx, "executing task", "task_run_id", payload.TaskRunID)
		if err := w.ProcessTask(ctx, payload); err != nil {
			logger.Error(ctx, "processing task failed", "task_run_id", payload.TaskRunID, "error", err)
		}
	}
}

// ProcessTask runs payload to completion: marks it running, executes it,
// records the outcome, and either fans out to downstream tasks (success),
// re-queues with backoff (failure/timeout, retries remaining), or leaves it
// terminal (retries exhausted). If the payload's run is already cancelled,
// it records cancelled for the attempt and does not execute it.
func (w *Worker) ProcessTask(ctx context.Context, payload *runplan.TaskPayload) error {
	runRec, err := w.backend.GetStatus(ctx, persistence.RunStatusKey(payload.RunID))
	if err != nil {
		return err
	}
	if runRec.Status == status.Cancelled {
		logger.Info(ctx, "skipping task of cancelled run", "task_run_id", payload.TaskRunID)
		return w.recordStatus(ctx, payload, status.Cancelled, nil)
	}

	if err := w.recordStatus(ctx, payload, status.Running, nil); err != nil {
		return err
	}

	result, err := w.executor.Execute(ctx, payload)
	if err != nil {
		return fmt.Errorf("worker: executing %s: %w", payload.TaskRunID, err)
	}

	meta := map[string]any{
		"stdout":   result.Stdout,
		"stderr":   result.Stderr,
		"duration": result.Duration,
	}
	if result.ExitCode != nil {
		meta["exit_code"] = *result.ExitCode
	}
	if err := w.recordStatus(ctx, payload, result.Status, meta); err != nil {
		return err
	}

	if result.Status == status.Success {
		return w.ScheduleDownstream(ctx, payload)
	}

	if payload.Attempt < payload.Retries {
		return w.retry(ctx, payload)
	}
	logger.Error(ctx, "task failed after exhausting retries", "task_run_id", payload.TaskRunID, "attempts", payload.Attempt+1)
	return nil
}

func (w *Worker) retry(ctx context.Context, payload *runplan.TaskPayload) error {
	policy := backoff.NewExponentialBackoffPolicy(retryBaseDelay)
	policy.MaxInterval = 0 // uncapped: the delay keeps doubling per attempt
	delay, err := policy.NextInterval(payload.Attempt)
	if err != nil {
		return err
	}

	next := payload.Clone()
	next.Attempt = payload.Attempt + 1
	next.TaskRunID = fmt.Sprintf("%s:%s:%d", payload.RunID, payload.TaskID, next.Attempt)

	logger.Warn(ctx, "retrying task", "task_run_id", payload.TaskRunID, "next_attempt", next.Attempt, "retries", payload.Retries, "delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := w.markQueued(ctx, next); err != nil {
		return err
	}
	return w.backend.PushTask(ctx, next)
}

// ScheduleDownstream enqueues every child of payload whose dependencies are
// now all satisfied and which has not already been scheduled for this run.
func (w *Worker) ScheduleDownstream(ctx context.Context, payload *runplan.TaskPayload) error {
	for _, childID := range payload.Downstream {
		child := w.buildChildPayload(payload, childID)
		if child == nil {
			continue
		}

		satisfied, err := w.dependenciesSatisfied(ctx, payload.RunID, child)
		if err != nil {
			return err
		}
		if !satisfied {
			continue
		}

		already, err := w.alreadyScheduled(ctx, child)
		if err != nil {
			return err
		}
		if already {
			continue
		}

		logger.Debug(ctx, "enqueueing downstream task", "task_id", childID, "run_id", payload.RunID)
		if err := w.markQueued(ctx, child); err != nil {
			return err
		}
		if err := w.backend.PushTask(ctx, child); err != nil {
			return err
		}
	}
	return nil
}

// buildChildPayload looks childID up in payload's blueprint and returns a
// fresh attempt-0 payload for it, or nil if the blueprint is missing or
// doesn't contain childID — a payload built without a blueprint snapshot
// (e.g. a hand-rolled test payload) simply can't fan out.
func (w *Worker) buildChildPayload(payload *runplan.TaskPayload, childID string) *runplan.TaskPayload {
	if payload.Blueprint == nil {
		return nil
	}
	base, ok := payload.Blueprint[childID]
	if !ok {
		return nil
	}

	child := base.Clone()
	child.Attempt = 0
	child.TaskRunID = fmt.Sprintf("%s:%s:0", payload.RunID, childID)
	child.Blueprint = payload.Blueprint
	return child
}

func (w *Worker) dependenciesSatisfied(ctx context.Context, runID string, child *runplan.TaskPayload) (bool, error) {
	for _, dep := range child.Dependencies {
		rec, err := w.backend.GetStatus(ctx, persistence.CanonicalTaskKey(runID, dep))
		if err != nil {
			return false, err
		}
		if rec.Status != status.Success {
			return false, nil
		}
	}
	return true, nil
}

// alreadyScheduled guards fan-in joins against double-enqueue: once a
// task's canonical status reaches queued/running/success, a second parent
// finishing later must not re-enqueue it.
func (w *Worker) alreadyScheduled(ctx context.Context, payload *runplan.TaskPayload) (bool, error) {
	rec, err := w.backend.GetStatus(ctx, persistence.CanonicalTaskKey(payload.RunID, payload.TaskID))
	if err != nil {
		return false, err
	}
	switch rec.Status {
	case status.Queued, status.Running, status.Success:
		return true, nil
	default:
		return false, nil
	}
}

func (w *Worker) markQueued(ctx context.Context, payload *runplan.TaskPayload) error {
	meta := map[string]any{
		"task_id":     payload.TaskID,
		"run_id":      payload.RunID,
		"task_run_id": payload.TaskRunID,
	}
	if err := w.backend.SaveStatus(ctx, persistence.AttemptTaskKey(payload.RunID, payload.TaskID, payload.Attempt), status.Queued, meta); err != nil {
		return err
	}
	return w.backend.SaveStatus(ctx, persistence.CanonicalTaskKey(payload.RunID, payload.TaskID), status.Queued, meta)
}

// recordStatus writes s to both the per-attempt and canonical keys for
// payload, enriching meta with task_id/run_id the way the original's
// _record_status does.
func (w *Worker) recordStatus(ctx context.Context, payload *runplan.TaskPayload, s status.Status, meta map[string]any) error {
	enriched := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		enriched[k] = v
	}
	enriched["task_id"] = payload.TaskID
	enriched["run_id"] = payload.RunID

	if err := w.backend.SaveStatus(ctx, payload.TaskRunID, s, enriched); err != nil {
		return err
	}
	return w.backend.SaveStatus(ctx, persistence.CanonicalTaskKey(payload.RunID, payload.TaskID), s, enriched)
}
