// Package tui implements the full-screen assessment editor using Bubble Tea
// and the shared terminal styles.
package tui

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/hirepath/hirepath/internal/assessment"
)

// ErrQuit is returned when the candidate quits the editor before the
// assessment is submitted or skipped.
var ErrQuit = errors.New("assessment editor closed")

// IsTTY returns true if both stdin and stdout are connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunAssessment shows the editor for c in the alternate screen and blocks
// until the stage is terminal or the candidate quits.
func RunAssessment(ctx context.Context, c *assessment.Controller) error {
	m := NewEditor(ctx, c)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if ed, ok := final.(Editor); ok && ed.quit && !c.State().Terminal() {
		return ErrQuit
	}
	return nil
}
