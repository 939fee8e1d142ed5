package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/orchestrator/internal/digraph"
	"github.com/flowforge/orchestrator/internal/executor"
	"github.com/flowforge/orchestrator/internal/persistence"
	"github.com/flowforge/orchestrator/internal/persistence/memory"
	"github.com/flowforge/orchestrator/internal/runplan"
	"github.com/flowforge/orchestrator/internal/scheduler"
	"github.com/flowforge/orchestrator/internal/status"
)

// stubExecutor returns a canned result for every task, optionally failing a
// named subset so retry/failure paths can be exercised deterministically.
type stubExecutor struct {
	failFor map[string]int // task_id -> number of attempts to fail before succeeding
	calls   map[string]int
}

func newStubExecutor(failFor map[string]int) *stubExecutor {
	return &stubExecutor{failFor: failFor, calls: map[string]int{}}
}

func (s *stubExecutor) Execute(_ context.Context, payload *runplan.TaskPayload) (*executor.Result, error) {
	s.calls[payload.TaskID]++
	if limit, ok := s.failFor[payload.TaskID]; ok && payload.Attempt < limit {
		return &executor.Result{Status: status.Failed, Stderr: "boom", ExitCode: intPtr(1)}, nil
	}
	return &executor.Result{Status: status.Success, Stdout: "ok", ExitCode: intPtr(0)}, nil
}

func intPtr(n int) *int { return &n }

func diamondDAG(t *testing.T) *digraph.DAG {
	t.Helper()
	d, err := digraph.NewDAG("d1", "diamond", []digraph.Task{
		{ID: "root", Command: "echo root"},
		{ID: "left", Command: "echo left", Dependencies: []string{"root"}},
		{ID: "right", Command: "echo right", Dependencies: []string{"root"}},
		{ID: "join", Command: "echo join", Dependencies: []string{"left", "right"}},
	})
	require.NoError(t, err)
	return d
}

// drainOne pops and processes a single task, returning the payload that was
// processed.
func drainOne(t *testing.T, ctx context.Context, backend *memory.Backend, w *Worker) *runplan.TaskPayload {
	t.Helper()
	payload, ok, err := backend.PopTask(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, w.ProcessTask(ctx, payload))
	return payload
}

func TestWorker_DiamondFanOutFanIn(t *testing.T) {
	backend := memory.New(0)
	ctx := context.Background()
	sched := scheduler.New(backend)
	d := diamondDAG(t)
	require.NoError(t, sched.ScheduleDAG(ctx, d, "run1"))

	stub := newStubExecutor(nil)
	w := New(backend, stub, 0)

	// root -> fans out to left and right.
	drainOne(t, ctx, backend, w)

	left := drainOne(t, ctx, backend, w)
	right := drainOne(t, ctx, backend, w)
	ids := []string{left.TaskID, right.TaskID}
	assert.ElementsMatch(t, []string{"left", "right"}, ids)

	// Whichever of left/right finished second is the one that actually
	// enqueues join (the first one to check finds right/left not yet
	// success). Either way exactly one join payload must be queued.
	joinPayload, ok, err := backend.PopTask(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "join", joinPayload.TaskID)

	// No duplicate join payload should have been enqueued.
	_, ok, err = backend.PopTask(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, w.ProcessTask(ctx, joinPayload))
	rec, err := backend.GetStatus(ctx, persistence.CanonicalTaskKey("run1", "join"))
	require.NoError(t, err)
	assert.Equal(t, status.Success, rec.Status)
	assert.Equal(t, 1, stub.calls["join"])
}

func TestWorker_RetriesUpToLimitThenStaysFailed(t *testing.T) {
	backend := memory.New(0)
	ctx := context.Background()
	d, err := digraph.NewDAG("d1", "single", []digraph.Task{
		{ID: "a", Command: "false", Retries: 2, RetryDelaySeconds: 0},
	})
	require.NoError(t, err)
	sched := scheduler.New(backend)
	require.NoError(t, sched.ScheduleDAG(ctx, d, "run1"))

	stub := newStubExecutor(map[string]int{"a": 99}) // always fails
	w := New(backend, stub, 0)

	payload, ok, err := backend.PopTask(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	// Attempt 0 fails, retries (attempt < retries=2), re-queues as attempt 1.
	require.NoError(t, w.ProcessTask(ctx, payload))
	next, ok, err := backend.PopTask(ctx, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, next.Attempt)

	// Attempt 1 fails, retries again, re-queues as attempt 2.
	require.NoError(t, w.ProcessTask(ctx, next))
	next, ok, err = backend.PopTask(ctx, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, next.Attempt)

	// Attempt 2 fails; attempt (2) is not < retries (2), so it stays failed.
	require.NoError(t, w.ProcessTask(ctx, next))
	_, ok, err = backend.PopTask(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := backend.GetStatus(ctx, persistence.CanonicalTaskKey("run1", "a"))
	require.NoError(t, err)
	assert.Equal(t, status.Failed, rec.Status)

	attempts, err := backend.ListAttempts(ctx, "run1", "a")
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
}

func TestWorker_FanInDoesNotDoubleEnqueue(t *testing.T) {
	backend := memory.New(0)
	ctx := context.Background()
	d := diamondDAG(t)
	sched := scheduler.New(backend)
	require.NoError(t, sched.ScheduleDAG(ctx, d, "run1"))

	stub := newStubExecutor(nil)
	w := New(backend, stub, 0)

	drainOne(t, ctx, backend, w) // root
	drainOne(t, ctx, backend, w) // left
	drainOne(t, ctx, backend, w) // right

	joins := 0
	for {
		_, ok, err := backend.PopTask(ctx, 20*time.Millisecond)
		require.NoError(t, err)
		if !ok {
			break
		}
		joins++
	}
	assert.Equal(t, 1, joins)
}
