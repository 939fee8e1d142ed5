// Package runplan turns a validated DAG and a run id into the per-task
// payloads that flow through the queue, along with the blueprint each
// payload carries so workers can fan out without re-reading the DAG store.
package runplan

import "github.com/flowforge/orchestrator/internal/digraph"

// TaskPayload is the unit enqueued onto the task queue: one per attempt of
// one task within one run.
type TaskPayload struct {
	TaskRunID         string            `json:"task_run_id"`
	RunID             string            `json:"run_id"`
	TaskID            string            `json:"task_id"`
	DAGID             string            `json:"dag_id"`
	Command           string            `json:"command,omitempty"`
	Callable          string            `json:"callable,omitempty"`
	Attempt           int               `json:"attempt"`
	Retries           int               `json:"retries"`
	RetryDelaySeconds int               `json:"retry_delay_seconds"`
	Dependencies      []string          `json:"dependencies,omitempty"`
	Downstream        []string          `json:"downstream,omitempty"`
	TimeoutSeconds    *int              `json:"timeout_seconds,omitempty"`
	Metadata          map[string]any    `json:"metadata,omitempty"`
	Blueprint         map[string]*TaskPayload `json:"dag_blueprint,omitempty"`
}

// Clone returns a deep copy of the payload, detaching it from the original's
// Metadata/Dependencies/Downstream/Blueprint backing arrays and maps so the
// copy can be mutated independently (used when building attempt N+1 and
// when building a downstream child's payload from the blueprint).
func (p *TaskPayload) Clone() *TaskPayload {
	clone := *p
	clone.Dependencies = append([]string(nil), p.Dependencies...)
	clone.Downstream = append([]string(nil), p.Downstream...)
	if p.TimeoutSeconds != nil {
		v := *p.TimeoutSeconds
		clone.TimeoutSeconds = &v
	}
	if p.Metadata != nil {
		clone.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			clone.Metadata[k] = v
		}
	}
	if p.Blueprint != nil {
		clone.Blueprint = make(map[string]*TaskPayload, len(p.Blueprint))
		for k, v := range p.Blueprint {
			if v != nil {
				v = v.Clone()
			}
			clone.Blueprint[k] = v
		}
	}
	return &clone
}

// baseFrom constructs a payload's task-specific fields from a DAG task,
// leaving TaskRunID/Attempt/Blueprint for the caller to fill in.
func baseFrom(d *digraph.DAG, runID string, t *digraph.Task, downstream []string) *TaskPayload {
	p := &TaskPayload{
		RunID:             runID,
		TaskID:            t.ID,
		DAGID:             d.ID,
		Command:           t.Command,
		Callable:          t.Callable,
		Retries:           t.Retries,
		RetryDelaySeconds: t.RetryDelaySeconds,
		Dependencies:      append([]string(nil), t.Dependencies...),
		Downstream:        append([]string(nil), downstream...),
		TimeoutSeconds:    t.TimeoutSeconds,
	}
	if len(t.Metadata) > 0 {
		p.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			p.Metadata[k] = v
		}
	}
	return p
}
