// Package status defines the task and run status vocabulary shared by the
// scheduler, worker, and persistence backends.
package status

// Status is the lifecycle state of a task attempt or a run.
type Status string

const (
	// Pending is implicit and is never written to the status store: a task
	// or run with no status record at all is pending.
	Pending Status = "pending"

	Queued  Status = "queued"
	Running Status = "running"

	Success   Status = "success"
	Failed    Status = "failed"
	Timeout   Status = "timeout"
	Cancelled Status = "cancelled"

	// Scheduled is a run-level-only status written when a run is first
	// planned, before any task transitions away from queued.
	Scheduled Status = "scheduled"
)

// IsTerminal reports whether a status will never transition further for a
// given attempt.
func (s Status) IsTerminal() bool {
	switch s {
	case Success, Failed, Timeout, Cancelled:
		return true
	default:
		return false
	}
}
