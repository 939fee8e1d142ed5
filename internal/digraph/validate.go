package digraph

// Validate checks the DAG's structural invariants in this order:
// self-dependency and dependency existence (one pass over every task's
// dependencies), cycle detection, then body presence and numeric fields.
// Self-dependency is checked before cycle detection so that it is reported
// as SelfDependency rather than as a Cycle. Cycle detection runs before TopologicalOrder
// is ever invoked elsewhere so a cyclic DAG never reaches the planner.
func Validate(d *DAG) error {
	for _, id := range d.TaskOrder {
		t := d.Tasks[id]
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				return newValidationError(KindSelfDependency, t.ID, "task cannot depend on itself")
			}
			if _, ok := d.Tasks[dep]; !ok {
				return newValidationError(KindUnknownDependency, t.ID, "references undefined dependency "+dep)
			}
		}
	}

	if hasCycle(d) {
		return newValidationError(KindCycle, "", "DAG "+d.ID+" contains a cycle")
	}

	for _, id := range d.TaskOrder {
		t := d.Tasks[id]
		if !t.HasBody() {
			return newValidationError(KindMissingBody, t.ID, "task must define either command or callable")
		}
		if t.Retries < 0 {
			return newValidationError(KindNegativeField, t.ID, "retries must be non-negative")
		}
		if t.RetryDelaySeconds < 0 {
			return newValidationError(KindNegativeField, t.ID, "retry_delay_seconds must be non-negative")
		}
		if t.TimeoutSeconds != nil && *t.TimeoutSeconds <= 0 {
			return newValidationError(KindNegativeField, t.ID, "timeout_seconds must be positive when set")
		}
	}

	return nil
}

// hasCycle runs a Kahn pass purely to count how many nodes it can visit: if
// fewer than every task was visited, some remainder forms a cycle.
func hasCycle(d *DAG) bool {
	indegree := make(map[string]int, len(d.Tasks))
	for id := range d.Tasks {
		indegree[id] = 0
	}
	for _, id := range d.TaskOrder {
		indegree[id] += len(d.Tasks[id].Dependencies)
	}

	queue := make([]string, 0, len(d.TaskOrder))
	for _, id := range d.TaskOrder {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	adjacency := buildAdjacency(d)
	visited := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited++
		for _, child := range adjacency[current] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	return visited != len(d.Tasks)
}

// buildAdjacency returns, for each task id, the ids of tasks that directly
// depend on it (the inverse of Task.Dependencies), preserving TaskOrder so
// that children are appended in a deterministic order.
func buildAdjacency(d *DAG) map[string][]string {
	adjacency := make(map[string][]string, len(d.Tasks))
	for _, id := range d.TaskOrder {
		t := d.Tasks[id]
		for _, dep := range t.Dependencies {
			adjacency[dep] = append(adjacency[dep], id)
		}
	}
	return adjacency
}

// TopologicalOrder returns task ids ordered so every dependency precedes its
// dependents, using Kahn's algorithm with insertion-order tie-break: among
// equally-ready nodes, the one declared earliest in the DAG pops first.
// Validate must have already rejected cycles; TopologicalOrder returns a
// Cycle error defensively if called on an unvalidated, cyclic DAG.
func TopologicalOrder(d *DAG) ([]string, error) {
	indegree := make(map[string]int, len(d.Tasks))
	for id := range d.Tasks {
		indegree[id] = 0
	}
	for _, id := range d.TaskOrder {
		indegree[id] += len(d.Tasks[id].Dependencies)
	}
	adjacency := buildAdjacency(d)

	// The queue is seeded and refilled in TaskOrder so the tie-break among
	// simultaneously-ready nodes follows declaration order, not map order.
	queue := make([]string, 0, len(d.TaskOrder))
	for _, id := range d.TaskOrder {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(d.Tasks))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		// adjacency[current] is already in TaskOrder order (buildAdjacency
		// appends while walking TaskOrder), so newly-ready children are
		// enqueued in declaration order too.
		for _, child := range adjacency[current] {
			indegree[child]--
			if indegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != len(d.Tasks) {
		return nil, newValidationError(KindCycle, "", "cycle detected during topological sort")
	}
	return order, nil
}
