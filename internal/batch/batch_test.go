package batch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sudodev/sudodev-cli/internal/controller"
	"github.com/sudodev/sudodev-cli/internal/domain"
)

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.yaml")
	content := `
runs:
  - instance_id: proj__proj-123
    problem_statement: "it crashes on empty input"
  - instance_id: other__other-7
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadManifest(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Runs) != 2 {
		t.Fatalf("Runs count = %d, want 2", len(m.Runs))
	}
	if m.Runs[0].InstanceID != "proj__proj-123" {
		t.Errorf("InstanceID = %q", m.Runs[0].InstanceID)
	}
	if m.Runs[0].ProblemStatement != "it crashes on empty input" {
		t.Errorf("ProblemStatement = %q", m.Runs[0].ProblemStatement)
	}
	if m.Runs[1].ProblemStatement != "" {
		t.Errorf("ProblemStatement = %q, want empty", m.Runs[1].ProblemStatement)
	}
}

func TestLoadManifest_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.yaml")
	if err := os.WriteFile(path, []byte("runs: []"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(path); err == nil {
		t.Error("expected error for empty manifest")
	}
}

func TestLoadManifest_BlankInstanceID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.yaml")
	content := "runs:\n  - instance_id: \"  \"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadManifest(path); err == nil {
		t.Error("expected error for blank instance_id")
	}
}

// batchClient resolves every odd-numbered submission and fails the rest
type batchClient struct {
	mu       sync.Mutex
	started  []string
	statuses map[string]domain.RunObservation
}

func (c *batchClient) StartRun(ctx context.Context, req domain.RunRequest) (domain.RunHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = append(c.started, req.InstanceID)
	return domain.RunHandle{RunID: "run-" + req.InstanceID}, nil
}

func (c *batchClient) GetStatus(ctx context.Context, runID string) (domain.RunObservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statuses[runID], nil
}

func TestRunner_SequentialOutcomes(t *testing.T) {
	client := &batchClient{
		statuses: map[string]domain.RunObservation{
			"run-a__1": {Status: domain.StatusCompleted, Patch: "diff-a"},
			"run-b__2": {Status: domain.StatusFailed, Message: "could not reproduce"},
		},
	}

	ctrl := controller.New(client, controller.Options{
		PollInterval: 5 * time.Millisecond,
		SettleDelay:  5 * time.Millisecond,
	})

	m := &Manifest{Runs: []Entry{
		{InstanceID: "a__1"},
		{InstanceID: "b__2"},
	}}

	results := NewRunner(ctrl, nil).Run(context.Background(), m)

	if len(results) != 2 {
		t.Fatalf("results count = %d, want 2", len(results))
	}

	if !results[0].Resolved {
		t.Errorf("a__1 resolved = false, want true (err=%q)", results[0].Err)
	}
	if results[0].Patch != "diff-a" {
		t.Errorf("a__1 patch = %q, want diff-a", results[0].Patch)
	}

	if results[1].Resolved {
		t.Error("b__2 resolved = true, want false")
	}
	if results[1].Err != "could not reproduce" {
		t.Errorf("b__2 err = %q, want could not reproduce", results[1].Err)
	}

	// Strictly sequential: a__1 submitted before b__2
	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.started) != 2 || client.started[0] != "a__1" || client.started[1] != "b__2" {
		t.Errorf("submission order = %v, want [a__1 b__2]", client.started)
	}

	summary := Summarize(results)
	if summary.Resolved != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 1 resolved / 1 failed", summary)
	}
}
