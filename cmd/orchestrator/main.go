// Command orchestrator is the CLI entrypoint for the distributed workflow
// orchestrator: it schedules DAG runs and runs workers against either an
// in-memory or a Redis-backed queue.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/flowforge/orchestrator/internal/executor"
)

func main() {
	// A process re-exec'd to run a single registered callable never reaches
	// cobra at all: it reads its callable name from the environment, runs
	// it, and reports the result on stdout. See SPEC_FULL.md §4.G.
	if executor.IsChildInvocation() {
		if err := executor.RunChild(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
