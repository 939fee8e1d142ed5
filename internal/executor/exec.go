// Package executor runs a single task payload: either a shell command via
// os/exec, or a registered Go callable re-executed in a child process for
// isolation. Grounded on original_source/src/orchestrator/executor.py, with
// the callable-resolution divergence documented in SPEC_FULL.md §4.G.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/flowforge/orchestrator/internal/runplan"
	"github.com/flowforge/orchestrator/internal/status"
)

// CallableEnvVar names the child process as the one re-exec'd to run a
// single registered callable; its value is the callable path to invoke.
const CallableEnvVar = "ORCHESTRATOR_RUN_CALLABLE"

// Result is the execution outcome of a single task attempt.
type Result struct {
	Status   status.Status
	Stdout   string
	Stderr   string
	Duration string
	ExitCode *int
}

// childResult is the JSON line a re-exec'd callable child writes to stdout.
type childResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Execute runs payload's command or callable and returns its outcome.
// digraph.Validate has already ensured that at least one of
// payload.Command / payload.Callable is set, so Execute treats a payload
// with neither as a programmer error. When both are set, Command runs.
func Execute(ctx context.Context, payload *runplan.TaskPayload) (*Result, error) {
	if payload.Command == "" && payload.Callable == "" {
		return nil, fmt.Errorf("executor: task payload %q has neither command nor callable", payload.TaskRunID)
	}

	var timeout time.Duration
	if payload.TimeoutSeconds != nil {
		timeout = time.Duration(*payload.TimeoutSeconds) * time.Second
	}

	started := time.Now()
	if payload.Command != "" {
		return executeCommand(ctx, payload.Command, timeout, started)
	}
	return executeCallable(ctx, payload.Callable, payload.Metadata, timeout, started)
}

func executeCommand(ctx context.Context, command string, timeout time.Duration, started time.Time) (*Result, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	duration := humanReadableDuration(time.Since(started))

	if runCtx.Err() == context.DeadlineExceeded {
		return &Result{
			Status:   status.Timeout,
			Stdout:   "",
			Stderr:   "Command execution exceeded timeout",
			Duration: duration,
		}, nil
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		code := 0
		return &Result{Status: status.Success, Stdout: stdout.String(), Stderr: stderr.String(), Duration: duration, ExitCode: &code}, nil
	case errors.As(err, &exitErr):
		code := exitErr.ExitCode()
		return &Result{Status: status.Failed, Stdout: stdout.String(), Stderr: stderr.String(), Duration: duration, ExitCode: &code}, nil
	default:
		return nil, fmt.Errorf("executor: running command: %w", err)
	}
}

func executeCallable(ctx context.Context, path string, metadata map[string]any, timeout time.Duration, started time.Time) (*Result, error) {
	duration := humanReadableDuration(time.Since(started))
	if _, _, err := ParseCallablePath(path); err != nil {
		return &Result{
			Status:   status.Failed,
			Stderr:   fmt.Sprintf("invalid callable path %q: %v", path, err),
			Duration: duration,
			ExitCode: intPtr(1),
		}, nil
	}

	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("executor: resolving current executable: %w", err)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("executor: marshaling callable metadata: %w", err)
	}

	cmd := exec.CommandContext(runCtx, exePath)
	cmd.Env = append(os.Environ(), CallableEnvVar+"="+path)
	cmd.Stdin = bytes.NewReader(metadataJSON)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	duration = humanReadableDuration(time.Since(started))

	if runCtx.Err() == context.DeadlineExceeded {
		return &Result{
			Status:   status.Timeout,
			Stdout:   "",
			Stderr:   "Callable execution exceeded timeout",
			Duration: duration,
		}, nil
	}

	if runErr != nil {
		return &Result{
			Status:   status.Failed,
			Stdout:   "",
			Stderr:   stderr.String(),
			Duration: duration,
			ExitCode: intPtr(1),
		}, nil
	}

	var cr childResult
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &cr); err != nil {
		return &Result{
			Status:   status.Failed,
			Stdout:   "",
			Stderr:   "callable produced no parseable output",
			Duration: duration,
			ExitCode: intPtr(1),
		}, nil
	}

	st := status.Success
	if cr.ExitCode != 0 {
		st = status.Failed
	}
	return &Result{Status: st, Stdout: cr.Stdout, Stderr: cr.Stderr, Duration: duration, ExitCode: &cr.ExitCode}, nil
}

func intPtr(n int) *int { return &n }
