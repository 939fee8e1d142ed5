package digraph

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DAG is a directed acyclic graph of tasks: the workflow definition.
//
// TaskOrder records the order tasks were declared in — JSON objects have no
// defined key order, but spec.md's tie-break rule for TopologicalOrder is a
// function of insertion order, so the DAG preserves it explicitly rather
// than relying on Go's randomized map iteration.
type DAG struct {
	ID        string
	Name      string
	Tasks     map[string]*Task
	TaskOrder []string
}

// NewDAG builds a DAG from an ordered task list, the form produced by an
// external DAG-document parser (out of scope for this package; see
// spec.md §6). Order is the slice order of tasks.
func NewDAG(id, name string, tasks []Task) (*DAG, error) {
	d := &DAG{
		ID:        id,
		Name:      name,
		Tasks:     make(map[string]*Task, len(tasks)),
		TaskOrder: make([]string, 0, len(tasks)),
	}
	for i := range tasks {
		t := tasks[i]
		if _, exists := d.Tasks[t.ID]; exists {
			return nil, fmt.Errorf("digraph: duplicate task id %q", t.ID)
		}
		d.Tasks[t.ID] = &t
		d.TaskOrder = append(d.TaskOrder, t.ID)
	}
	return d, nil
}

// dagDoc mirrors the wire shape in spec.md §6: a JSON object keyed by task
// id. Decoding goes through a token-level pass (see UnmarshalJSON) to
// recover declaration order, which the map representation alone cannot.
type dagDoc struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Tasks map[string]*Task `json:"tasks"`
}

// MarshalJSON emits tasks in TaskOrder so that SaveDAG/LoadDAG round trips
// preserve the tie-break order used by TopologicalOrder.
func (d *DAG) MarshalJSON() ([]byte, error) {
	tasks := make(map[string]*Task, len(d.Tasks))
	for id, t := range d.Tasks {
		tasks[id] = t
	}
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	idJSON, err := json.Marshal(d.ID)
	if err != nil {
		return nil, err
	}
	buf.Write(idJSON)
	buf.WriteString(`,"name":`)
	nameJSON, err := json.Marshal(d.Name)
	if err != nil {
		return nil, err
	}
	buf.Write(nameJSON)
	buf.WriteString(`,"tasks":{`)
	for i, id := range d.TaskOrder {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := json.Marshal(tasks[id])
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a DAG document, recovering task declaration order
// from the raw token stream since Go's map does not preserve it.
func (d *DAG) UnmarshalJSON(data []byte) error {
	var doc dagDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	order, err := taskKeyOrder(data)
	if err != nil {
		return err
	}

	d.ID = doc.ID
	d.Name = doc.Name
	d.Tasks = doc.Tasks
	d.TaskOrder = order
	for id, t := range doc.Tasks {
		if t.ID == "" {
			t.ID = id
		}
	}
	return nil
}

// taskKeyOrder walks the raw JSON tokens of a DAG document and returns the
// keys of its "tasks" object in declaration order.
func taskKeyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var order []string
	inTasksObject := false
	depth := 0

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				depth++
			case '}':
				depth--
				if inTasksObject && depth == 1 {
					inTasksObject = false
				}
			}
		case string:
			if depth == 1 && v == "tasks" {
				inTasksObject = true
				continue
			}
			if inTasksObject && depth == 2 {
				order = append(order, v)
				// Skip the task object's value without tracking it as a key.
				var raw json.RawMessage
				if err := dec.Decode(&raw); err != nil {
					return nil, err
				}
			}
		}
	}
	return order, nil
}
