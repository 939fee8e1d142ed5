// Package digraph defines the DAG and Task models and the graph algorithms
// (validation, cycle detection, topological ordering) that operate on them.
package digraph

import "fmt"

// ErrorKind identifies the distinct class of validation failure a DAG can
// produce. Callers should compare against these constants rather than
// matching on error strings.
type ErrorKind string

const (
	KindUnknownDependency ErrorKind = "UnknownDependency"
	KindCycle             ErrorKind = "Cycle"
	KindSelfDependency    ErrorKind = "SelfDependency"
	KindMissingBody       ErrorKind = "MissingBody"
	KindNegativeField     ErrorKind = "NegativeField"
)

// ValidationError wraps a validation failure with its kind so callers can
// branch on Kind() without string matching, and the task id it concerns
// where applicable.
type ValidationError struct {
	Kind   ErrorKind
	TaskID string
	msg    string
}

func (e *ValidationError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.msg)
	}
	return fmt.Sprintf("%s: task %q: %s", e.Kind, e.TaskID, e.msg)
}

func newValidationError(kind ErrorKind, taskID, msg string) *ValidationError {
	return &ValidationError{Kind: kind, TaskID: taskID, msg: msg}
}
