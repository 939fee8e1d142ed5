package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/flowforge/orchestrator/internal/digraph"
)

// loadDAGFile reads a DAG document from path. Parsing the wire format itself
// is spec.md's scope (digraph.DAG's UnmarshalJSON); this just supplies the
// bytes, since reading a DAG definition off disk for the CLI is outside what
// the spec models but is the minimum needed to exercise ScheduleDAG.
func loadDAGFile(path string) (*digraph.DAG, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dag file %s: %w", path, err)
	}
	var d digraph.DAG
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing dag file %s: %w", path, err)
	}
	return &d, nil
}
