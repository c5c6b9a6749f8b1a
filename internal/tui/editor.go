package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/assessment"
	"github.com/hirepath/hirepath/internal/gateway"
	"github.com/hirepath/hirepath/internal/timer"
)

// maxEditorWidth is the maximum width of the task box.
const maxEditorWidth = 100

// refreshInterval is how often the countdown display is re-read.
const refreshInterval = 250 * time.Millisecond

type refreshMsg struct{}

type doneMsg struct{}

type submitResultMsg struct{ err error }

// Editor is the Bubble Tea model for the timed assessment.
type Editor struct {
	ctx        context.Context
	ctrl       *assessment.Controller
	keys       KeyMap
	input      textarea.Model
	spin       spinner.Model
	remaining  int
	escPending bool
	submitting bool
	notice     string
	err        error
	quit       bool
	width      int
	height     int
}

// NewEditor creates the editor for a loaded controller.
func NewEditor(ctx context.Context, c *assessment.Controller) Editor {
	ta := textarea.New()
	ta.Placeholder = "Write your solution here..."
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.SetWidth(maxEditorWidth - 4)
	ta.SetHeight(14)
	ta.SetValue(c.Solution())

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = WarningStyle

	return Editor{
		ctx:       ctx,
		ctrl:      c,
		keys:      DefaultKeyMap,
		input:     ta,
		spin:      sp,
		remaining: c.Remaining(),
	}
}

// Init starts the refresh loop and waits for the stage to finish.
func (m Editor) Init() tea.Cmd {
	return tea.Batch(refresh(), waitDone(m.ctrl), m.spin.Tick)
}

func refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{} })
}

func waitDone(c *assessment.Controller) tea.Cmd {
	return func() tea.Msg {
		<-c.Done()
		return doneMsg{}
	}
}

func submit(ctx context.Context, c *assessment.Controller) tea.Cmd {
	return func() tea.Msg {
		return submitResultMsg{err: c.Submit(ctx)}
	}
}

// Update handles key presses and stage progress.
func (m Editor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w := min(msg.Width-6, maxEditorWidth-4)
		if w > 20 {
			m.input.SetWidth(w)
		}
		return m, nil

	case refreshMsg:
		m.remaining = m.ctrl.Remaining()
		return m, refresh()

	case doneMsg:
		return m, tea.Quit

	case submitResultMsg:
		m.submitting = false
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Editor) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quit = true
		m.ctrl.Pause()
		return m, tea.Quit
	}

	if key.Matches(msg, m.keys.Skip) {
		if !m.escPending {
			m.escPending = true
			m.notice = "Press esc again to skip the assessment. It cannot be resumed."
			return m, nil
		}
		m.escPending = false
		if err := m.ctrl.Skip(true); err != nil {
			m.err = err
		}
		return m, nil
	}
	m.escPending = false
	m.notice = ""

	switch m.ctrl.State() {
	case assessment.Introduction:
		if key.Matches(msg, m.keys.Begin) {
			if err := m.ctrl.Begin(m.ctx); err != nil {
				m.err = err
				return m, nil
			}
			m.remaining = m.ctrl.Remaining()
			return m, m.input.Focus()
		}
		return m, nil

	case assessment.Timed:
		if key.Matches(msg, m.keys.Submit) {
			if err := m.ctrl.SetSolution(m.input.Value()); err != nil {
				m.err = err
				return m, nil
			}
			m.submitting = true
			m.input.Blur()
			return m, submit(m.ctx, m.ctrl)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		_ = m.ctrl.SetSolution(m.input.Value())
		return m, cmd
	}
	return m, nil
}

// View renders the task, countdown and editor.
func (m Editor) View() string {
	task := m.ctrl.Task()
	if task == nil {
		return ErrorStyle.Render("No assessment loaded.")
	}
	var b strings.Builder

	clock := ClockStyle
	if m.remaining <= 60 {
		clock = ClockLowStyle
	}
	title := TitleStyle.Render(taskTitle(task))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", clock.Render(timer.Format(m.remaining))))
	b.WriteString("\n\n")
	b.WriteString(describeTask(task))
	b.WriteString("\n")

	state := m.ctrl.State()
	switch state {
	case assessment.Introduction:
		fmt.Fprintf(&b, "You will have %d minutes. The timer starts when you press enter.\n\n", task.TimeLimit)
		b.WriteString(helpLine(m.keys.Begin, m.keys.Skip, m.keys.Quit))
	case assessment.Timed:
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(helpLine(m.keys.Submit, m.keys.Skip, m.keys.Quit))
	case assessment.Submitted:
		if m.submitting {
			b.WriteString(m.spin.View() + " Submitting...\n")
		} else {
			b.WriteString(SuccessStyle.Render("Submitted.") + "\n")
		}
	case assessment.Abandoned:
		b.WriteString(WarningStyle.Render("Assessment skipped.") + "\n")
	}

	if m.notice != "" {
		b.WriteString("\n" + WarningStyle.Render(m.notice))
	}
	if m.err != nil {
		b.WriteString("\n" + ErrorStyle.Render(gateway.UserMessage(m.err)))
	}

	width := maxEditorWidth
	if m.width > 0 && m.width < width {
		width = m.width
	}
	return BoxStyle.Width(width - 2).Render(b.String())
}

func taskTitle(t *api.AssessmentTask) string {
	if t.Title != "" {
		return t.Title
	}
	switch t.Type {
	case api.TaskCoding:
		return "Coding Challenge"
	case api.TaskBusinessCase:
		return "Business Case"
	case api.TaskAnalytical:
		return "Analytical Problem"
	}
	return "Assessment"
}

// describeTask renders the task body shared by the editor and the console
// driver.
func describeTask(t *api.AssessmentTask) string {
	var b strings.Builder
	if t.Description != "" {
		b.WriteString(t.Description + "\n")
	}
	if t.Scenario != nil {
		if t.Scenario.Context != "" {
			fmt.Fprintf(&b, "\nContext: %s\n", t.Scenario.Context)
		}
		if t.Scenario.Problem != "" {
			fmt.Fprintf(&b, "Problem: %s\n", t.Scenario.Problem)
		}
		for _, d := range t.Scenario.DataPoints {
			fmt.Fprintf(&b, "  * %s\n", d)
		}
	}
	if len(t.Requirements) > 0 {
		b.WriteString("\nRequirements:\n")
		for _, r := range t.Requirements {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
	}
	if t.ExampleInput != "" {
		fmt.Fprintf(&b, "\nExample input:  %s\n", t.ExampleInput)
	}
	if t.ExampleOutput != "" {
		fmt.Fprintf(&b, "Example output: %s\n", t.ExampleOutput)
	}
	if len(t.EvaluationCriteria) > 0 {
		fmt.Fprintf(&b, "\nEvaluated on: %s\n", strings.Join(t.EvaluationCriteria, ", "))
	}
	return b.String()
}

// DescribeTask renders a task as plain text.
func DescribeTask(t *api.AssessmentTask) string {
	return TitleStyle.Render(taskTitle(t)) + "\n\n" + describeTask(t)
}
