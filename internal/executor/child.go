package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// IsChildInvocation reports whether this process was re-exec'd to run a
// single callable, so cmd/orchestrator's main can branch before parsing CLI
// flags.
func IsChildInvocation() bool {
	_, ok := os.LookupEnv(CallableEnvVar)
	return ok
}

// RunChild executes the callable named by CallableEnvVar against metadata
// read from stdin, and writes a single JSON result line to stdout. A failing
// callable, an unknown or malformed callable path, and unreadable or
// undecodable stdin are all reported as exit_code 1 in the result line; it
// returns an error only when the result line itself cannot be written.
func RunChild(ctx context.Context) error {
	path := os.Getenv(CallableEnvVar)
	fn, err := Lookup(path)
	if err != nil {
		return writeChildResult(os.Stdout, childResult{ExitCode: 1, Stderr: err.Error()})
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return writeChildResult(os.Stdout, childResult{ExitCode: 1, Stderr: fmt.Sprintf("reading metadata: %v", err)})
	}

	var metadata map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &metadata); err != nil {
			return writeChildResult(os.Stdout, childResult{ExitCode: 1, Stderr: fmt.Sprintf("decoding metadata: %v", err)})
		}
	}

	output, callErr := fn(ctx, metadata)
	if callErr != nil {
		return writeChildResult(os.Stdout, childResult{ExitCode: 1, Stderr: callErr.Error()})
	}

	stdout, err := json.Marshal(output)
	if err != nil {
		return writeChildResult(os.Stdout, childResult{ExitCode: 1, Stderr: fmt.Sprintf("encoding result: %v", err)})
	}
	return writeChildResult(os.Stdout, childResult{ExitCode: 0, Stdout: string(stdout)})
}

func writeChildResult(w io.Writer, cr childResult) error {
	data, err := json.Marshal(cr)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
