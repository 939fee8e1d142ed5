package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/orchestrator/internal/digraph"
	"github.com/flowforge/orchestrator/internal/persistence"
	"github.com/flowforge/orchestrator/internal/persistence/memory"
	"github.com/flowforge/orchestrator/internal/status"
)

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

func TestScheduleDAG_EnqueuesOnlyRoots(t *testing.T) {
	backend := memory.New(0)
	ctx := context.Background()
	s := New(backend)
	d := diamondDAG(t)

	require.NoError(t, s.ScheduleDAG(ctx, d, "run1"))

	payload, ok, err := backend.PopTask(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "root", payload.TaskID)

	// Only one task (root) should have been enqueued.
	_, ok, err = backend.PopTask(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScheduleDAG_WritesQueuedStatusBeforeEnqueue(t *testing.T) {
	backend := memory.New(0)
	ctx := context.Background()
	s := New(backend)
	d := diamondDAG(t)

	require.NoError(t, s.ScheduleDAG(ctx, d, "run1"))

	rec, err := backend.GetStatus(ctx, persistence.CanonicalTaskKey("run1", "root"))
	require.NoError(t, err)
	assert.Equal(t, status.Queued, rec.Status)

	runRec, err := backend.GetStatus(ctx, persistence.RunStatusKey("run1"))
	require.NoError(t, err)
	assert.Equal(t, status.Scheduled, runRec.Status)
	assert.Equal(t, "d1", runRec.Meta["dag_id"])
}

func TestScheduleDAG_RejectsInvalidDAG(t *testing.T) {
	backend := memory.New(0)
	s := New(backend)
	d, err := digraph.NewDAG("d1", "bad", []digraph.Task{{ID: "a"}})
	require.NoError(t, err)

	err = s.ScheduleDAG(context.Background(), d, "run1")
	assert.Error(t, err)
}

func TestCancelRun_MarksNonTerminalTasksCancelled(t *testing.T) {
	backend := memory.New(0)
	ctx := context.Background()
	s := New(backend)
	d := diamondDAG(t)
	require.NoError(t, s.ScheduleDAG(ctx, d, "run1"))

	// Simulate "join" already having finished successfully before cancel.
	require.NoError(t, backend.SaveStatus(ctx, persistence.CanonicalTaskKey("run1", "join"), status.Success, nil))

	require.NoError(t, s.CancelRun(ctx, "run1"))

	rootRec, err := backend.GetStatus(ctx, persistence.CanonicalTaskKey("run1", "root"))
	require.NoError(t, err)
	assert.Equal(t, status.Cancelled, rootRec.Status)

	joinRec, err := backend.GetStatus(ctx, persistence.CanonicalTaskKey("run1", "join"))
	require.NoError(t, err)
	assert.Equal(t, status.Success, joinRec.Status)

	runRec, err := backend.GetStatus(ctx, persistence.RunStatusKey("run1"))
	require.NoError(t, err)
	assert.Equal(t, status.Cancelled, runRec.Status)
}

func TestCancelRun_UnknownRun(t *testing.T) {
	backend := memory.New(0)
	s := New(backend)
	err := s.CancelRun(context.Background(), "missing")
	assert.Error(t, err)
}
