package controller

import (
	"time"

	"github.com/sudodev/sudodev-cli/internal/domain"
)

// Snapshot is the read-only view exposed to presentation layers
type Snapshot struct {
	Phase      domain.Phase
	Request    domain.RunRequest
	RunID      string
	Status     domain.RunStatus
	StageIndex int
	Stages     []string
	Logs       []string
	Message    string
	Patch      string // set only once the run has resolved
	Failure    string // human-readable reason when Phase is failed
	StartedAt  time.Time
}

// Snapshot returns the current session state for rendering
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	phase := c.phase
	failure := c.failure
	c.mu.Unlock()

	sess := c.store.Session()

	snap := Snapshot{
		Phase:     phase,
		Request:   sess.Request,
		Stages:    domain.Stages,
		Failure:   failure,
		StartedAt: sess.StartedAt,
	}
	if sess.Handle != nil {
		snap.RunID = sess.Handle.RunID
	}
	if sess.Observation != nil {
		snap.Status = sess.Observation.Status
		snap.StageIndex = domain.ClampStage(sess.Observation.StepIndex)
		snap.Logs = sess.Observation.Logs
		snap.Message = sess.Observation.Message

		// The artifact is authoritative only on success. A partial
		// patch produced before a failure is never exposed.
		if phase == domain.PhaseResolved {
			snap.Patch = sess.Observation.Patch
		}
	}
	return snap
}
