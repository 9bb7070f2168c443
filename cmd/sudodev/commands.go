package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sudodev/sudodev-cli/internal/agentapi"
	"github.com/sudodev/sudodev-cli/internal/batch"
	"github.com/sudodev/sudodev-cli/internal/config"
	"github.com/sudodev/sudodev-cli/internal/controller"
	"github.com/sudodev/sudodev-cli/internal/domain"
	"github.com/sudodev/sudodev-cli/internal/history"
	"github.com/sudodev/sudodev-cli/internal/notify"
	"github.com/sudodev/sudodev-cli/tui"
)

var version = "dev"

var (
	runProblem string
	runOutput  string
	runsLimit  int
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run INSTANCE_ID",
		Short: "Submit a run and track it to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&runProblem, "problem", "", "supplementary problem statement")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the generated patch to a file")
	rootCmd.AddCommand(runCmd)

	// tui command
	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch the interactive run dashboard",
		RunE:  runTUI,
	}
	rootCmd.AddCommand(tuiCmd)

	// runs command
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "List past runs from local history",
		RunE:  runRuns,
	}
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(runsCmd)

	// batch command
	batchCmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Run a YAML manifest of instances sequentially",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	rootCmd.AddCommand(batchCmd)

	// version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("sudodev " + version)
		},
	}
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func newController(cfg *config.Config) *controller.Controller {
	client := agentapi.New(cfg.Server.URL, cfg.HTTPTimeout())
	return controller.New(client, controller.Options{
		PollInterval: cfg.PollInterval(),
		SettleDelay:  cfg.SettleDelay(),
	})
}

func newNotifier(cfg *config.Config) notify.Notifier {
	return notify.NewMultiNotifier(
		notify.NewDesktopNotifier(cfg.Notifications.Desktop),
		notify.NewSlackNotifier(cfg.Notifications.SlackWebhook),
	)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctrl := newController(cfg)
	req := domain.RunRequest{
		InstanceID:       args[0],
		ProblemStatement: runProblem,
	}

	started := time.Now()
	if err := ctrl.Submit(req); err != nil {
		return err
	}
	fmt.Printf("Submitted %s to %s\n", req.InstanceID, cfg.Server.URL)

	phase := streamProgress(ctrl)
	snap := ctrl.Snapshot()

	recordRun(cfg, snap, started)
	newNotifier(cfg).Send(notify.ForRunResult(
		req.InstanceID, snap.RunID, phase == domain.PhaseResolved, snap.Failure))

	if phase != domain.PhaseResolved {
		return fmt.Errorf("run failed: %s", snap.Failure)
	}

	fmt.Println("\n✓ Resolved")
	if snap.Patch != "" {
		if runOutput != "" {
			if err := os.WriteFile(runOutput, []byte(snap.Patch), 0o644); err != nil {
				return fmt.Errorf("writing patch: %w", err)
			}
			fmt.Printf("Patch written to %s\n", runOutput)
		} else {
			fmt.Println("\n" + snap.Patch)
		}
	}
	return nil
}

// streamProgress prints stage changes and new log lines until the run
// reaches a terminal phase.
func streamProgress(ctrl *controller.Controller) domain.Phase {
	printedRunID := false
	lastStage := -1
	lastLogs := 0

	for {
		snap := ctrl.Snapshot()

		if !printedRunID && snap.RunID != "" {
			fmt.Printf("Run ID: %s\n", snap.RunID)
			printedRunID = true
		}

		if snap.Status != "" && snap.StageIndex != lastStage {
			fmt.Printf("==> %s\n", domain.StageLabel(snap.StageIndex))
			lastStage = snap.StageIndex
		}

		// The log feed is replaced wholesale on each observation; only
		// the tail beyond what was already printed is new.
		if len(snap.Logs) > lastLogs {
			for _, line := range snap.Logs[lastLogs:] {
				fmt.Println("    " + line)
			}
			lastLogs = len(snap.Logs)
		}

		if snap.Phase.Terminal() {
			return snap.Phase
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// recordRun appends the finished run to local history. History is best
// effort; a failure here never fails the run itself.
func recordRun(cfg *config.Config, snap controller.Snapshot, started time.Time) {
	store, err := history.New(cfg.History.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: opening history: %v\n", err)
		return
	}
	defer store.Close()

	status := "failed"
	if snap.Phase == domain.PhaseResolved {
		status = "resolved"
	}

	if _, err := store.SaveRun(history.Record{
		RunID:      snap.RunID,
		InstanceID: snap.Request.InstanceID,
		Status:     status,
		Patch:      snap.Patch,
		Error:      snap.Failure,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "warning: saving history: %v\n", err)
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	model := tui.NewModel(newController(cfg))
	p := tea.NewProgram(model, tea.WithAltScreen())

	_, err = p.Run()
	return err
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := history.New(cfg.History.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.ListRecent(runsLimit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No runs recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tRUN ID\tSTATUS\tFINISHED")
	for _, rec := range records {
		runID := rec.RunID
		if runID == "" {
			runID = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.InstanceID, runID, rec.Status, humanize.Time(rec.FinishedAt))
	}
	w.Flush()

	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	manifest, err := batch.LoadManifest(args[0])
	if err != nil {
		return err
	}

	ctrl := newController(cfg)
	runner := batch.NewRunner(ctrl, func(format string, a ...interface{}) {
		fmt.Printf(format+"\n", a...)
	})

	results := runner.Run(context.Background(), manifest)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tRUN ID\tOUTCOME\tDURATION")
	for _, res := range results {
		outcome := "resolved"
		if !res.Resolved {
			outcome = "failed: " + res.Err
		}
		runID := res.RunID
		if runID == "" {
			runID = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			res.InstanceID, runID, outcome, res.Duration.Round(time.Second))
	}
	w.Flush()

	summary := batch.Summarize(results)
	fmt.Printf("\n%d runs: %d resolved, %d failed\n",
		summary.Total, summary.Resolved, summary.Failed)

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d runs failed", summary.Failed, summary.Total)
	}
	return nil
}
