package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sudodev/sudodev-cli/internal/controller"
	"github.com/sudodev/sudodev-cli/internal/domain"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.snap.Phase == domain.PhaseIdle {
			return m.updateForm(msg)
		}
		return m.updateRun(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		m.snap = m.ctrl.Snapshot()
		return m, tickCmd()
	}

	return m, nil
}

// updateForm handles keys while the submission form is showing
func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "tab", "shift+tab":
		if m.focused == fieldInstance {
			m.focused = fieldProblem
		} else {
			m.focused = fieldInstance
		}

	case "enter":
		err := m.ctrl.Submit(domain.RunRequest{
			InstanceID:       m.instanceInput,
			ProblemStatement: m.problemInput,
		})
		if err != nil {
			m.formError = err.Error()
			return m, nil
		}
		m.formError = ""
		m.logScroll = 0
		m.snap = m.ctrl.Snapshot()

	case "backspace":
		if m.focused == fieldInstance && len(m.instanceInput) > 0 {
			m.instanceInput = m.instanceInput[:len(m.instanceInput)-1]
		}
		if m.focused == fieldProblem && len(m.problemInput) > 0 {
			m.problemInput = m.problemInput[:len(m.problemInput)-1]
		}

	default:
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
			text := string(msg.Runes)
			if msg.Type == tea.KeySpace {
				text = " "
			}
			if m.focused == fieldInstance {
				m.instanceInput += text
			} else {
				m.problemInput += text
			}
		}
	}

	return m, nil
}

// updateRun handles keys while a run is in flight or finished
func (m Model) updateRun(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit

	case "r":
		// New run: discard the session and return to the form
		m.ctrl.Reset()
		m.snap = m.ctrl.Snapshot()
		m.logScroll = 0

	case "j", "down":
		m.logScroll++

	case "k", "up":
		if m.logScroll > 0 {
			m.logScroll--
		}
	}

	return m, nil
}

// Snapshot exposes the model's current view of the run (for tests)
func (m Model) Snapshot() controller.Snapshot {
	return m.snap
}
