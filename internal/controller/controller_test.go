package controller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sudodev/sudodev-cli/internal/agentapi"
	"github.com/sudodev/sudodev-cli/internal/domain"
)

// fakeClient lets each test script remote behavior
type fakeClient struct {
	startRun  func(ctx context.Context, req domain.RunRequest) (domain.RunHandle, error)
	getStatus func(ctx context.Context, runID string) (domain.RunObservation, error)
}

func (f *fakeClient) StartRun(ctx context.Context, req domain.RunRequest) (domain.RunHandle, error) {
	return f.startRun(ctx, req)
}

func (f *fakeClient) GetStatus(ctx context.Context, runID string) (domain.RunObservation, error) {
	return f.getStatus(ctx, runID)
}

func acceptRun(id string) func(context.Context, domain.RunRequest) (domain.RunHandle, error) {
	return func(context.Context, domain.RunRequest) (domain.RunHandle, error) {
		return domain.RunHandle{RunID: id}, nil
	}
}

// statusSequence serves observations in order, repeating the last
func statusSequence(observations ...domain.RunObservation) func(context.Context, string) (domain.RunObservation, error) {
	var mu sync.Mutex
	calls := 0
	return func(context.Context, string) (domain.RunObservation, error) {
		mu.Lock()
		defer mu.Unlock()
		i := calls
		if i >= len(observations) {
			i = len(observations) - 1
		}
		calls++
		return observations[i], nil
	}
}

func fastOptions() Options {
	return Options{PollInterval: 5 * time.Millisecond, SettleDelay: 20 * time.Millisecond}
}

func waitPhase(t *testing.T, c *Controller, want domain.Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Snapshot().Phase == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("phase = %q, want %q", c.Snapshot().Phase, want)
}

// phaseRecorder captures the transition history
type phaseRecorder struct {
	mu     sync.Mutex
	phases []domain.Phase
}

func (r *phaseRecorder) record(p domain.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases = append(r.phases, p)
}

func (r *phaseRecorder) seen() []domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Phase(nil), r.phases...)
}

func TestController_SubmitTransitionsSynchronously(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeClient{
		startRun: func(context.Context, domain.RunRequest) (domain.RunHandle, error) {
			<-gate
			return domain.RunHandle{RunID: "abc123"}, nil
		},
		getStatus: statusSequence(domain.RunObservation{Status: domain.StatusPending}),
	}

	c := New(client, fastOptions())
	if err := c.Submit(domain.RunRequest{InstanceID: "proj__proj-123"}); err != nil {
		t.Fatal(err)
	}

	// Submitting must be observable before the network result lands
	if got := c.Snapshot().Phase; got != domain.PhaseSubmitting {
		t.Errorf("phase after Submit = %q, want submitting", got)
	}

	close(gate)
	waitPhase(t, c, domain.PhaseActive)
	c.Reset()
}

func TestController_EmptyInstanceID(t *testing.T) {
	c := New(&fakeClient{}, fastOptions())

	err := c.Submit(domain.RunRequest{InstanceID: "   "})
	if err != ErrEmptyInstanceID {
		t.Fatalf("err = %v, want ErrEmptyInstanceID", err)
	}
	if got := c.Snapshot().Phase; got != domain.PhaseIdle {
		t.Errorf("phase = %q, validation failure must not transition", got)
	}
}

func TestController_SubmitWhileBusy(t *testing.T) {
	client := &fakeClient{
		startRun:  acceptRun("abc123"),
		getStatus: statusSequence(domain.RunObservation{Status: domain.StatusProcessing}),
	}

	c := New(client, fastOptions())
	if err := c.Submit(domain.RunRequest{InstanceID: "a"}); err != nil {
		t.Fatal(err)
	}
	waitPhase(t, c, domain.PhaseActive)

	if err := c.Submit(domain.RunRequest{InstanceID: "b"}); err != ErrRunInProgress {
		t.Errorf("err = %v, want ErrRunInProgress", err)
	}
	c.Reset()
}

func TestController_StartRunFailure(t *testing.T) {
	client := &fakeClient{
		startRun: func(context.Context, domain.RunRequest) (domain.RunHandle, error) {
			return domain.RunHandle{}, &agentapi.TransportError{Err: context.DeadlineExceeded}
		},
	}

	c := New(client, fastOptions())
	if err := c.Submit(domain.RunRequest{InstanceID: "proj__proj-123"}); err != nil {
		t.Fatal(err)
	}

	waitPhase(t, c, domain.PhaseFailed)

	snap := c.Snapshot()
	if snap.RunID != "" {
		t.Errorf("RunID = %q, no handle must be stored on submission failure", snap.RunID)
	}
	if snap.Failure == "" {
		t.Error("Failure should carry the transport error text")
	}
}

func TestController_ActiveReplacesObservations(t *testing.T) {
	client := &fakeClient{
		startRun: acceptRun("abc123"),
		getStatus: statusSequence(
			domain.RunObservation{Status: domain.StatusPending, StepIndex: 0, Logs: []string{"queued"}},
			domain.RunObservation{Status: domain.StatusProcessing, StepIndex: 2, Logs: []string{"starting", "analyzing"}},
			domain.RunObservation{Status: domain.StatusProcessing, StepIndex: 3, Logs: []string{"locating"}},
		),
	}

	c := New(client, fastOptions())
	if err := c.Submit(domain.RunRequest{InstanceID: "proj__proj-123"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := c.Snapshot()
		if snap.StageIndex == 3 {
			if snap.Phase != domain.PhaseActive {
				t.Errorf("phase = %q, want active while processing", snap.Phase)
			}
			// Latest observation replaces, never merges
			if len(snap.Logs) != 1 || snap.Logs[0] != "locating" {
				t.Errorf("Logs = %v, want [locating]", snap.Logs)
			}
			c.Reset()
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("never observed step index 3")
}

func TestController_ErrorIndicatorSkipsSettling(t *testing.T) {
	client := &fakeClient{
		startRun: acceptRun("abc123"),
		getStatus: statusSequence(
			domain.RunObservation{Status: domain.StatusProcessing},
			domain.RunObservation{Status: domain.StatusFailed, ErrorIndicator: true, ErrorMessage: "agent crashed"},
		),
	}

	rec := &phaseRecorder{}
	c := New(client, fastOptions())
	c.SetTransitionCallback(rec.record)

	if err := c.Submit(domain.RunRequest{InstanceID: "proj__proj-123"}); err != nil {
		t.Fatal(err)
	}
	waitPhase(t, c, domain.PhaseFailed)

	for _, p := range rec.seen() {
		if p == domain.PhaseSettling {
			t.Error("error path must not pass through settling")
		}
	}
	if got := c.Snapshot().Failure; got != "agent crashed" {
		t.Errorf("Failure = %q, want agent crashed", got)
	}
}

func TestController_CompletedSettlesThenResolves(t *testing.T) {
	patch := "--- a/x.py\n+++ b/x.py\n"
	client := &fakeClient{
		startRun: acceptRun("abc123"),
		getStatus: statusSequence(
			domain.RunObservation{Status: domain.StatusProcessing, StepIndex: 2, Logs: []string{"starting", "analyzing"}},
			domain.RunObservation{Status: domain.StatusCompleted, StepIndex: 5, Patch: patch},
		),
	}

	rec := &phaseRecorder{}
	c := New(client, fastOptions())
	c.SetTransitionCallback(rec.record)

	if err := c.Submit(domain.RunRequest{InstanceID: "proj__proj-123"}); err != nil {
		t.Fatal(err)
	}
	waitPhase(t, c, domain.PhaseResolved)

	var sawSettling bool
	for _, p := range rec.seen() {
		if p == domain.PhaseSettling {
			sawSettling = true
		}
		if p == domain.PhaseResolved && !sawSettling {
			t.Error("resolved before settling")
		}
	}
	if !sawSettling {
		t.Error("completed run must pass through settling")
	}

	if got := c.Snapshot().Patch; got != patch {
		t.Errorf("Patch = %q, want the final observation's patch", got)
	}
}

func TestController_FailedStatusSettlesThenFails(t *testing.T) {
	client := &fakeClient{
		startRun: acceptRun("abc123"),
		getStatus: statusSequence(
			domain.RunObservation{Status: domain.StatusFailed, Message: "verification failed", Patch: "partial"},
		),
	}

	c := New(client, fastOptions())
	if err := c.Submit(domain.RunRequest{InstanceID: "proj__proj-123"}); err != nil {
		t.Fatal(err)
	}
	waitPhase(t, c, domain.PhaseFailed)

	snap := c.Snapshot()
	if snap.Patch != "" {
		t.Errorf("Patch = %q, partial artifacts must not be exposed on failure", snap.Patch)
	}
	if snap.Failure != "verification failed" {
		t.Errorf("Failure = %q, want verification failed", snap.Failure)
	}
}

func TestController_ResetCancelsRun(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{
		startRun: acceptRun("abc123"),
		getStatus: func(ctx context.Context, runID string) (domain.RunObservation, error) {
			select {
			case <-ctx.Done():
				return domain.RunObservation{}, ctx.Err()
			case <-release:
			}
			return domain.RunObservation{Status: domain.StatusProcessing, Logs: []string{"late"}}, nil
		},
	}

	c := New(client, fastOptions())
	if err := c.Submit(domain.RunRequest{InstanceID: "proj__proj-123"}); err != nil {
		t.Fatal(err)
	}
	waitPhase(t, c, domain.PhaseActive)

	c.Reset()
	close(release)
	time.Sleep(20 * time.Millisecond)

	snap := c.Snapshot()
	if snap.Phase != domain.PhaseIdle {
		t.Errorf("phase = %q, want idle", snap.Phase)
	}
	if snap.RunID != "" || len(snap.Logs) != 0 || snap.Request.InstanceID != "" {
		t.Errorf("session not empty after reset: %+v", snap)
	}
}

func TestController_ResetDuringSettling(t *testing.T) {
	client := &fakeClient{
		startRun:  acceptRun("abc123"),
		getStatus: statusSequence(domain.RunObservation{Status: domain.StatusCompleted, Patch: "diff"}),
	}

	c := New(client, Options{PollInterval: 5 * time.Millisecond, SettleDelay: 200 * time.Millisecond})
	if err := c.Submit(domain.RunRequest{InstanceID: "proj__proj-123"}); err != nil {
		t.Fatal(err)
	}
	waitPhase(t, c, domain.PhaseSettling)

	c.Reset()
	time.Sleep(250 * time.Millisecond)

	if got := c.Snapshot().Phase; got != domain.PhaseIdle {
		t.Errorf("phase = %q, settle timer must not fire after reset", got)
	}
}

func TestController_StaleRunDoesNotCorruptNewSession(t *testing.T) {
	firstPoll := make(chan struct{})
	client := &fakeClient{}
	client.startRun = func(ctx context.Context, req domain.RunRequest) (domain.RunHandle, error) {
		if req.InstanceID == "first" {
			return domain.RunHandle{RunID: "run-1"}, nil
		}
		return domain.RunHandle{RunID: "run-2"}, nil
	}
	client.getStatus = func(ctx context.Context, runID string) (domain.RunObservation, error) {
		if runID == "run-1" {
			// Held until after the second run is active, then answers
			<-firstPoll
			return domain.RunObservation{Status: domain.StatusProcessing, StepIndex: 5, Logs: []string{"stale"}}, nil
		}
		return domain.RunObservation{Status: domain.StatusProcessing, StepIndex: 1, Logs: []string{"fresh"}}, nil
	}

	c := New(client, fastOptions())
	if err := c.Submit(domain.RunRequest{InstanceID: "first"}); err != nil {
		t.Fatal(err)
	}
	waitPhase(t, c, domain.PhaseActive)

	c.Reset()
	if err := c.Submit(domain.RunRequest{InstanceID: "second"}); err != nil {
		t.Fatal(err)
	}
	waitPhase(t, c, domain.PhaseActive)

	close(firstPoll)
	time.Sleep(30 * time.Millisecond)

	snap := c.Snapshot()
	if snap.RunID != "run-2" {
		t.Fatalf("RunID = %q, want run-2", snap.RunID)
	}
	if len(snap.Logs) > 0 && snap.Logs[0] == "stale" {
		t.Error("stale run-1 observation leaked into the run-2 session")
	}
	c.Reset()
}

func TestController_AwaitTerminal(t *testing.T) {
	client := &fakeClient{
		startRun:  acceptRun("abc123"),
		getStatus: statusSequence(domain.RunObservation{Status: domain.StatusCompleted, Patch: "diff"}),
	}

	c := New(client, fastOptions())
	if err := c.Submit(domain.RunRequest{InstanceID: "proj__proj-123"}); err != nil {
		t.Fatal(err)
	}

	phase, err := c.AwaitTerminal(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if phase != domain.PhaseResolved {
		t.Errorf("phase = %q, want resolved", phase)
	}
}
