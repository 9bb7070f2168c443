package domain

import "fmt"

// RunStatus represents the remote agent's reported status for a run
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// ParseRunStatus maps a remote status string onto the closed enum.
// The remote field is free-form text; anything outside the enum is
// rejected rather than silently defaulted.
func ParseRunStatus(s string) (RunStatus, error) {
	switch RunStatus(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return RunStatus(s), nil
	}
	return "", fmt.Errorf("unknown run status %q", s)
}

// Terminal reports whether the remote run has finished
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Phase represents the controller's lifecycle phase
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseActive     Phase = "active"
	PhaseSettling   Phase = "settling"
	PhaseResolved   Phase = "resolved"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether the phase is a terminal controller state
func (p Phase) Terminal() bool {
	return p == PhaseResolved || p == PhaseFailed
}
