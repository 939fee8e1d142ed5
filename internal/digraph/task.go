package digraph

// Task is the definition of a single node in a DAG.
//
// A task defines Command or Callable. Validate rejects a task that sets
// neither; a task that sets both passes validation, and the executor then
// runs Command.
type Task struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Command           string         `json:"command,omitempty"`
	Callable          string         `json:"callable,omitempty"`
	Retries           int            `json:"retries"`
	RetryDelaySeconds int            `json:"retry_delay_seconds"`
	Dependencies      []string       `json:"dependencies,omitempty"`
	TimeoutSeconds    *int           `json:"timeout_seconds,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// HasBody reports whether the task defines something executable.
func (t *Task) HasBody() bool {
	return t.Command != "" || t.Callable != ""
}
