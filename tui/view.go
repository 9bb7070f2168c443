package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sudodev/sudodev-cli/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	focusedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	stageDoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	stageActiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214")).
				Bold(true)

	stagePendingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255"))
)

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("sudodev — autonomous code fixing"))
	b.WriteString("\n\n")

	switch m.snap.Phase {
	case domain.PhaseIdle:
		b.WriteString(m.renderForm())
	default:
		b.WriteString(m.renderRun())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())

	return b.String()
}

func (m Model) renderForm() string {
	var b strings.Builder

	instanceLabel := labelStyle.Render("Instance ID ")
	problemLabel := labelStyle.Render("Problem     ")
	if m.focused == fieldInstance {
		instanceLabel = focusedStyle.Render("Instance ID ")
	} else {
		problemLabel = focusedStyle.Render("Problem     ")
	}

	b.WriteString("Submit a run\n\n")
	b.WriteString(fmt.Sprintf("%s%s\n", instanceLabel, m.instanceInput+cursorFor(m.focused == fieldInstance)))
	b.WriteString(fmt.Sprintf("%s%s\n", problemLabel, m.problemInput+cursorFor(m.focused == fieldProblem)))

	if m.formError != "" {
		b.WriteString("\n" + errorStyle.Render(m.formError) + "\n")
	}

	b.WriteString("\n" + labelStyle.Render("tab: switch field • enter: submit • esc: quit"))

	return sectionStyle.Render(b.String())
}

func cursorFor(focused bool) string {
	if focused {
		return "█"
	}
	return ""
}

func (m Model) renderRun() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Instance: %s", m.snap.Request.InstanceID))
	if m.snap.RunID != "" {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  (run %s)", m.snap.RunID)))
	}
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render(m.renderStages()))
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(m.renderLogs()))

	if result := m.renderResult(); result != "" {
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(result))
	}

	return b.String()
}

func (m Model) renderStages() string {
	var b strings.Builder
	b.WriteString("Pipeline\n")

	for i, label := range m.snap.Stages {
		var line string
		switch {
		case m.snap.Phase == domain.PhaseResolved:
			line = stageDoneStyle.Render("  ✓ " + label)
		case i < m.snap.StageIndex:
			line = stageDoneStyle.Render("  ✓ " + label)
		case i == m.snap.StageIndex && m.snap.Phase != domain.PhaseFailed:
			line = stageActiveStyle.Render("  ▶ " + label)
		default:
			line = stagePendingStyle.Render("  · " + label)
		}
		b.WriteString(line + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderLogs() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Logs (%d)\n", len(m.snap.Logs)))

	if len(m.snap.Logs) == 0 {
		b.WriteString(labelStyle.Render("  waiting for agent output..."))
		return b.String()
	}

	visible := m.logWindow()
	for _, line := range visible {
		b.WriteString(logStyle.Render("  "+line) + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// logWindow returns the slice of log lines currently visible, honoring
// scroll position and available height.
func (m Model) logWindow() []string {
	max := m.height - 18
	if max < 4 {
		max = 4
	}
	logs := m.snap.Logs
	if len(logs) <= max {
		return logs
	}

	// Default view tails the feed; scrolling moves the window up
	start := len(logs) - max - m.logScroll
	if start < 0 {
		start = 0
	}
	return logs[start : start+max]
}

func (m Model) renderResult() string {
	switch m.snap.Phase {
	case domain.PhaseSettling:
		return labelStyle.Render("finalizing...")

	case domain.PhaseResolved:
		var b strings.Builder
		b.WriteString(successStyle.Render("✓ Resolved") + "\n")
		if m.snap.Patch != "" {
			b.WriteString(labelStyle.Render("Generated patch:") + "\n")
			b.WriteString(previewPatch(m.snap.Patch, 12))
		}
		return b.String()

	case domain.PhaseFailed:
		reason := m.snap.Failure
		if reason == "" {
			reason = "run failed"
		}
		return errorStyle.Render("✗ Failed") + "\n" + reason

	default:
		return ""
	}
}

// previewPatch shows the first n lines of a patch
func previewPatch(patch string, n int) string {
	lines := strings.Split(strings.TrimRight(patch, "\n"), "\n")
	if len(lines) > n {
		lines = append(lines[:n], fmt.Sprintf("... (%d more lines)", len(lines)-n))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusBar() string {
	parts := []string{string(m.snap.Phase)}

	if !m.snap.StartedAt.IsZero() && m.snap.Phase != domain.PhaseIdle {
		parts = append(parts, "started "+humanize.Time(m.snap.StartedAt))
	}

	switch m.snap.Phase {
	case domain.PhaseIdle:
		parts = append(parts, "enter: submit")
	case domain.PhaseResolved, domain.PhaseFailed:
		parts = append(parts, "r: new run • q: quit")
	default:
		parts = append(parts, "j/k: scroll logs • r: abort • q: quit")
	}

	bar := " " + strings.Join(parts, "  │  ") + " "
	if m.width > 0 {
		return statusBarStyle.Width(m.width).Render(bar)
	}
	return statusBarStyle.Render(bar)
}
