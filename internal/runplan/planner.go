package runplan

import (
	"fmt"

	"github.com/flowforge/orchestrator/internal/digraph"
)

// BuildRunTasks validates dag and returns one base payload per task,
// attempt 0, task_run_id {run_id}:{task_id}:0, with downstream set to the
// inverse of Dependencies and dag_blueprint set to a snapshot of every
// task's base payload in the run.
func BuildRunTasks(d *digraph.DAG, runID string) ([]*TaskPayload, error) {
	if err := digraph.Validate(d); err != nil {
		return nil, err
	}

	downstream := make(map[string][]string, len(d.Tasks))
	for _, id := range d.TaskOrder {
		for _, dep := range d.Tasks[id].Dependencies {
			downstream[dep] = append(downstream[dep], id)
		}
	}

	payloads := make([]*TaskPayload, 0, len(d.TaskOrder))
	blueprint := make(map[string]*TaskPayload, len(d.TaskOrder))
	for _, id := range d.TaskOrder {
		t := d.Tasks[id]
		p := baseFrom(d, runID, t, downstream[id])
		p.Attempt = 0
		p.TaskRunID = fmt.Sprintf("%s:%s:0", runID, id)
		payloads = append(payloads, p)
		blueprint[id] = p
	}

	// Attach a shared, deep-copied blueprint to every payload so workers
	// can construct downstream payloads without re-reading the DAG store.
	for _, p := range payloads {
		p.Blueprint = deepCopyBlueprint(blueprint)
	}

	return payloads, nil
}

func deepCopyBlueprint(blueprint map[string]*TaskPayload) map[string]*TaskPayload {
	out := make(map[string]*TaskPayload, len(blueprint))
	for id, p := range blueprint {
		clone := p.Clone()
		clone.Blueprint = nil
		out[id] = clone
	}
	return out
}
