// Package ui renders the live session state in the terminal. The presenter is
// read-only: it polls the app's published status and never touches session
// state directly, so a render hiccup can never stall the tick loop.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sajided/sparkEye/internal/core"
	"github.com/sajided/sparkEye/internal/session"
	"github.com/sajided/sparkEye/internal/types"
)

const refreshInterval = 100 * time.Millisecond

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	badStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	barFillStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

type tickMsg time.Time

// Model is the bubbletea model for the session view.
type Model struct {
	app    *core.App
	status core.Status
	width  int
}

// NewModel creates the presenter for an app.
func NewModel(app *core.App) Model {
	return Model{app: app, status: app.Status(), width: 80}
}

// Init schedules the first refresh.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles input and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		m.status = m.app.Status()
		return m, tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			m.app.RequestReset()
		}
	}
	return m, nil
}

// View renders the session state.
func (m Model) View() string {
	st := m.status
	var b strings.Builder

	b.WriteString(titleStyle.Render("sparkEye"))
	b.WriteString("\n\n")

	b.WriteString(stepStyle.Render(m.stepLine(st.Session)))
	b.WriteString("\n")
	b.WriteString(m.statusLine(st))
	b.WriteString("\n")

	if fb := m.feedbackLine(st.Session); fb != "" {
		b.WriteString(fb)
		b.WriteString("\n")
	}

	if st.Session.Phase == session.PhaseMoving || st.Session.Phase == session.PhaseSteady {
		b.WriteString(m.progressBar(st.StillnessProgress))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"motion %.0f | %s %.1f fps | q quit, r reset",
		st.Session.MotionScore, st.Stream.SourceStream, st.Stream.FPSReal,
	)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) stepLine(s session.Snapshot) string {
	if s.StepsDone() {
		return "All steps completed!"
	}
	steps := m.app.Steps()
	if s.StepIndex < len(steps) {
		return fmt.Sprintf("Step %d: %s", s.StepIndex+1, steps[s.StepIndex].Instruction)
	}
	return fmt.Sprintf("Step %d of %d", s.StepIndex+1, s.TotalSteps)
}

// statusLine mirrors the session machine: one line that tells the user what
// the system is waiting for right now.
func (m Model) statusLine(st core.Status) string {
	s := st.Session

	if s.QuotaLocked {
		return badStyle.Render("QUOTA EXHAUSTED. Try tomorrow.")
	}

	switch s.Phase {
	case session.PhaseMoving:
		return hintStyle.Render("Stabilize camera...")
	case session.PhaseSteady:
		if s.CooldownRemaining > 0 {
			secs := int(s.CooldownRemaining.Seconds()) + 1
			return hintStyle.Render(fmt.Sprintf("Cooldown (%ds)...", secs))
		}
		if s.EventConsumed {
			return hintStyle.Render("Done. Move to retry.")
		}
		return hintStyle.Render("Hold steady...")
	case session.PhaseAnalyzing:
		return warnStyle.Render("Thinking...")
	case session.PhaseFeedback:
		if s.LastOutcome != nil && s.LastOutcome.Status == types.StatusCorrect && s.StepsDone() {
			return okStyle.Render("Complete!")
		}
		return hintStyle.Render("Move to continue.")
	}
	return ""
}

// feedbackLine shows the last verification outcome. It persists across phase
// changes until the next outcome replaces it.
func (m Model) feedbackLine(s session.Snapshot) string {
	if s.LastOutcome == nil {
		return ""
	}
	out := s.LastOutcome
	switch out.Status {
	case types.StatusCorrect:
		return okStyle.Render("CORRECT: " + out.Feedback)
	case types.StatusPartial:
		return warnStyle.Render("PARTIAL: " + out.Feedback)
	case types.StatusIncorrect:
		return badStyle.Render("INCORRECT: " + out.Feedback)
	default:
		return badStyle.Render(out.Feedback)
	}
}

func (m Model) progressBar(progress float64) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	width := 30
	filled := int(progress * float64(width))
	bar := barFillStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("[%s] %3.0f%%", bar, progress*100)
}

// Run starts the presenter and blocks until the user quits or the context is
// cancelled (e.g. the frame source ended).
func Run(ctx context.Context, app *core.App) error {
	p := tea.NewProgram(NewModel(app), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled)) {
		return nil
	}
	return err
}
