package constants

// JobStatus is the canonical status of a grading job.
type JobStatus string

// Stable values (exposed verbatim in job status views).
const (
	JobStatusPending   JobStatus = "pending"   // created, worker has not picked it up
	JobStatusRunning   JobStatus = "running"   // rows are being graded
	JobStatusCompleted JobStatus = "completed" // terminal, result artifact written
	JobStatusFailed    JobStatus = "failed"    // terminal failure
)

// IsTerminal reports whether no further transition can leave s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusFailed
	case JobStatusRunning:
		return next == JobStatusRunning || next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}
