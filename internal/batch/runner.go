package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/sudodev/sudodev-cli/internal/controller"
	"github.com/sudodev/sudodev-cli/internal/domain"
)

// Result summarizes one batch entry's outcome
type Result struct {
	InstanceID string
	RunID      string
	Resolved   bool
	Patch      string
	Err        string
	Duration   time.Duration
}

// Runner executes manifest entries strictly one at a time through a
// single controller, so the one-active-session invariant holds across
// the whole batch.
type Runner struct {
	ctrl     *controller.Controller
	progress func(format string, args ...interface{})
}

// NewRunner creates a Runner. progress may be nil.
func NewRunner(ctrl *controller.Controller, progress func(format string, args ...interface{})) *Runner {
	if progress == nil {
		progress = func(string, ...interface{}) {}
	}
	return &Runner{ctrl: ctrl, progress: progress}
}

// Run executes every manifest entry in order. A failed entry does not
// stop the batch; ctx cancellation does.
func (r *Runner) Run(ctx context.Context, m *Manifest) []Result {
	results := make([]Result, 0, len(m.Runs))

	for i, entry := range m.Runs {
		if ctx.Err() != nil {
			break
		}

		r.progress("[%d/%d] %s", i+1, len(m.Runs), entry.InstanceID)
		results = append(results, r.runOne(ctx, entry))
		r.ctrl.Reset()
	}

	return results
}

func (r *Runner) runOne(ctx context.Context, entry Entry) Result {
	start := time.Now()

	if err := r.ctrl.Submit(entry.Request()); err != nil {
		return Result{
			InstanceID: entry.InstanceID,
			Err:        err.Error(),
			Duration:   time.Since(start),
		}
	}

	phase, err := r.ctrl.AwaitTerminal(ctx)
	snap := r.ctrl.Snapshot()

	result := Result{
		InstanceID: entry.InstanceID,
		RunID:      snap.RunID,
		Duration:   time.Since(start),
	}

	switch {
	case err != nil:
		result.Err = fmt.Sprintf("aborted: %v", err)
	case phase == domain.PhaseResolved:
		result.Resolved = true
		result.Patch = snap.Patch
	default:
		result.Err = snap.Failure
		if result.Err == "" {
			result.Err = "run failed"
		}
	}

	return result
}

// Summary aggregates batch results
type Summary struct {
	Total    int
	Resolved int
	Failed   int
}

// Summarize counts outcomes across results
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, res := range results {
		if res.Resolved {
			s.Resolved++
		} else {
			s.Failed++
		}
	}
	return s
}
