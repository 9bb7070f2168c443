package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sudodev/sudodev-cli/internal/controller"
)

// field identifies which form input has focus
type field int

const (
	fieldInstance field = iota
	fieldProblem
)

// Model is the TUI application model. It is a pure presentation
// adapter: all run state lives in the controller, and the model only
// reads snapshots and issues submit/reset commands.
type Model struct {
	ctrl *controller.Controller

	// Form state
	instanceInput string
	problemInput  string
	focused       field
	formError     string

	// Latest controller snapshot
	snap controller.Snapshot

	// UI state
	width     int
	height    int
	logScroll int
}

// NewModel creates a new TUI model bound to a controller
func NewModel(ctrl *controller.Controller) Model {
	return Model{
		ctrl: ctrl,
		snap: ctrl.Snapshot(),
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg triggers a snapshot refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
