package domain

import "time"

// RunRequest describes one run submission. Immutable once created.
type RunRequest struct {
	InstanceID       string // benchmark instance key or free-form issue reference
	ProblemStatement string // optional supplementary context
}

// RunHandle identifies a run the remote server has accepted.
// Created once per submission and never reused.
type RunHandle struct {
	RunID string
}

// RunObservation is one status snapshot from a poll. Each observation
// fully replaces the previous one, logs included; the remote run state
// is the source of truth and nothing is merged client-side.
type RunObservation struct {
	Status         RunStatus
	StepIndex      int
	Logs           []string
	Message        string
	Patch          string // empty until the agent has produced a fix
	ErrorIndicator bool   // remote-reported error or failed poll, distinct from StatusFailed
	ErrorMessage   string
}

// RunSession aggregates everything known about the single active run.
// Owned and mutated exclusively by the controller.
type RunSession struct {
	Request     RunRequest
	Handle      *RunHandle
	Observation *RunObservation
	StartedAt   time.Time
}
