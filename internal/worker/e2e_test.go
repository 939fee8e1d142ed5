package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/orchestrator/internal/digraph"
	"github.com/flowforge/orchestrator/internal/persistence"
	"github.com/flowforge/orchestrator/internal/persistence/memory"
	"github.com/flowforge/orchestrator/internal/scheduler"
	"github.com/flowforge/orchestrator/internal/status"
)

// E1: linear DAG a -> b -> c with one worker. All three tasks end success,
// the queue drains empty, and each task_id has exactly one successful
// attempt.
func TestE2E_LinearRunCompletesInOrder(t *testing.T) {
	backend := memory.New(0)
	ctx := context.Background()
	d, err := digraph.NewDAG("demo", "linear", []digraph.Task{
		{ID: "task_a", Command: "echo X"},
		{ID: "task_b", Command: "echo X", Dependencies: []string{"task_a"}},
		{ID: "task_c", Command: "echo X", Dependencies: []string{"task_b"}},
	})
	require.NoError(t, err)
	require.NoError(t, scheduler.New(backend).ScheduleDAG(ctx, d, "r1"))

	w := New(backend, newStubExecutor(nil), 0)
	for _, id := range []string{"task_a", "task_b", "task_c"} {
		payload, ok, err := backend.PopTask(ctx, 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, id, payload.TaskID)
		require.NoError(t, w.ProcessTask(ctx, payload))
	}

	_, ok, err := backend.PopTask(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "queue must be empty once the chain completes")

	for _, id := range []string{"task_a", "task_b", "task_c"} {
		rec, err := backend.GetStatus(ctx, persistence.CanonicalTaskKey("r1", id))
		require.NoError(t, err)
		assert.Equal(t, status.Success, rec.Status)

		attempts, err := backend.ListAttempts(ctx, "r1", id)
		require.NoError(t, err)
		assert.Len(t, attempts, 1)
		assert.Equal(t, status.Success, attempts[0].Status)
	}
}

// E3: a task with retries=2 fails on attempt 0 and 1, succeeds on attempt 2.
// The canonical status ends success and the per-attempt history reads
// failed, failed, success.
func TestE2E_RetryThenSuccess(t *testing.T) {
	backend := memory.New(0)
	ctx := context.Background()
	d, err := digraph.NewDAG("demo", "single", []digraph.Task{
		{ID: "a", Callable: "pkg.flaky", Retries: 2},
	})
	require.NoError(t, err)
	require.NoError(t, scheduler.New(backend).ScheduleDAG(ctx, d, "r1"))

	stub := newStubExecutor(map[string]int{"a": 2}) // fails attempts 0,1; succeeds at attempt 2
	w := New(backend, stub, 0)

	for want := 0; want < 3; want++ {
		payload, ok, err := backend.PopTask(ctx, 3*time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, payload.Attempt)
		require.NoError(t, w.ProcessTask(ctx, payload))
	}

	rec, err := backend.GetStatus(ctx, persistence.CanonicalTaskKey("r1", "a"))
	require.NoError(t, err)
	assert.Equal(t, status.Success, rec.Status)

	attempts, err := backend.ListAttempts(ctx, "r1", "a")
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, status.Failed, attempts[0].Status)
	assert.Equal(t, status.Failed, attempts[1].Status)
	assert.Equal(t, status.Success, attempts[2].Status)
}

// E4: a command that runs past its timeout ends in status timeout with no
// exit code, routed through the worker's terminal-status recording path
// (not just the executor in isolation).
func TestE2E_TimeoutEndsTerminalWithoutRetry(t *testing.T) {
	backend := memory.New(0)
	ctx := context.Background()
	d, err := digraph.NewDAG("demo", "single", []digraph.Task{
		{ID: "a", Command: "sleep 10", TimeoutSeconds: intPtr(1), Retries: 0},
	})
	require.NoError(t, err)
	require.NoError(t, scheduler.New(backend).ScheduleDAG(ctx, d, "r1"))

	w := New(backend, DefaultExecutor, 0)
	payload, ok, err := backend.PopTask(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	start := time.Now()
	require.NoError(t, w.ProcessTask(ctx, payload))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 3*time.Second)

	rec, err := backend.GetStatus(ctx, persistence.CanonicalTaskKey("r1", "a"))
	require.NoError(t, err)
	assert.Equal(t, status.Timeout, rec.Status)
	_, hasExitCode := rec.Meta["exit_code"]
	assert.False(t, hasExitCode)

	_, ok, err = backend.PopTask(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok, "a timeout with retries=0 must not requeue")
}
