package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/orchestrator/internal/runplan"
	"github.com/flowforge/orchestrator/internal/status"
)

func TestExecute_CommandSuccess(t *testing.T) {
	result, err := Execute(context.Background(), &runplan.TaskPayload{
		TaskRunID: "run1:a:0",
		Command:   "echo hello",
	})
	require.NoError(t, err)
	assert.Equal(t, status.Success, result.Status)
	assert.Equal(t, "hello\n", result.Stdout)
	require.NotNil(t, result.ExitCode)
	assert.Equal(t, 0, *result.ExitCode)
}

func TestExecute_CommandFailure(t *testing.T) {
	result, err := Execute(context.Background(), &runplan.TaskPayload{
		TaskRunID: "run1:a:0",
		Command:   "exit 3",
	})
	require.NoError(t, err)
	assert.Equal(t, status.Failed, result.Status)
	require.NotNil(t, result.ExitCode)
	assert.Equal(t, 3, *result.ExitCode)
}

func TestExecute_CommandTimeout(t *testing.T) {
	timeout := 1
	result, err := Execute(context.Background(), &runplan.TaskPayload{
		TaskRunID:      "run1:a:0",
		Command:        "sleep 5",
		TimeoutSeconds: &timeout,
	})
	require.NoError(t, err)
	assert.Equal(t, status.Timeout, result.Status)
	assert.Nil(t, result.ExitCode)
	assert.Contains(t, result.Stderr, "timeout")
}

func TestExecute_RejectsEmptyPayload(t *testing.T) {
	_, err := Execute(context.Background(), &runplan.TaskPayload{TaskRunID: "run1:a:0"})
	require.Error(t, err)
}
