// driver.go implements the console stage driver: line prompts for intake
// and the interview, and either the full-screen editor or line mode for
// the assessment.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/assessment"
	"github.com/hirepath/hirepath/internal/gateway"
	"github.com/hirepath/hirepath/internal/intake"
	"github.com/hirepath/hirepath/internal/interview"
	"github.com/hirepath/hirepath/internal/media"
	"github.com/hirepath/hirepath/internal/report"
	"github.com/hirepath/hirepath/internal/session"
	"github.com/hirepath/hirepath/internal/timer"
	"github.com/hirepath/hirepath/internal/tui"
)

// errQuit is returned when the candidate leaves; the session can be resumed.
var errQuit = errors.New("session paused; continue later with: hirepath resume")

// Console commands accepted during the interview.
const (
	cmdRecord = "/r"
	cmdReplay = "/replay"
	cmdDone   = "/done"
	cmdQuit   = "/quit"
	cmdSubmit = "/submit"
	cmdSkip   = "/skip"
)

type consoleDriver struct {
	in        *lineReader
	out       io.Writer
	cvPath    string
	editor    bool
	reportDir string
}

var (
	notice = color.New(color.FgYellow)
	failed = color.New(color.FgRed)
)

func (d *consoleDriver) heading(active session.Stage) {
	var parts []string
	reached := false
	for _, st := range []session.Stage{session.StageIntake, session.StageInterview, session.StageAssessment, session.StageReport} {
		marker := tui.StageDone
		switch {
		case st == active:
			marker = tui.StageActive
			reached = true
		case reached:
			marker = tui.StagePending
		}
		parts = append(parts, marker+" "+string(st))
	}
	fmt.Fprintf(d.out, "\n%s\n\n", strings.Join(parts, "   "))
}

func (d *consoleDriver) warn(err error) {
	failed.Fprintln(d.out, gateway.UserMessage(err))
}

func (d *consoleDriver) read(ctx context.Context) (string, error) {
	line, err := d.in.Read(ctx, nil)
	if errors.Is(err, errInputClosed) {
		return "", errQuit
	}
	return line, err
}

// Intake asks for a CV path until one uploads.
func (d *consoleDriver) Intake(ctx context.Context, c *intake.Controller) (intake.CVSummary, error) {
	d.heading(session.StageIntake)
	path := d.cvPath
	for {
		if path == "" {
			fmt.Fprint(d.out, "Path to your CV (PDF, TXT, DOC, DOCX): ")
			line, err := d.read(ctx)
			if err != nil {
				return intake.CVSummary{}, err
			}
			if line == cmdQuit {
				return intake.CVSummary{}, errQuit
			}
			path = line
			if path == "" {
				continue
			}
		}

		fmt.Fprintln(d.out, "Uploading and analysing your CV...")
		sum, err := c.Upload(ctx, path)
		if err == nil {
			fmt.Fprintf(d.out, "%s %s\n", tui.StageDone, sum.Summary)
			if sum.QuestionsGenerated > 0 {
				fmt.Fprintf(d.out, "%d interview questions prepared.\n", sum.QuestionsGenerated)
			}
			return sum, nil
		}
		switch {
		case errors.Is(err, intake.ErrUnsupportedFile), errors.Is(err, intake.ErrFileTooLarge), errors.Is(err, intake.ErrEmptyFile):
			failed.Fprintln(d.out, err)
		case errors.Is(err, gateway.ErrSessionNotFound):
			return intake.CVSummary{}, err
		default:
			d.warn(err)
		}
		path = ""
	}
}

// Interview runs the question loop until the controller completes.
func (d *consoleDriver) Interview(ctx context.Context, c *interview.Controller) error {
	d.heading(session.StageInterview)
	fmt.Fprintln(d.out, "Type your answer and press enter.")
	fmt.Fprintf(d.out, "%s records a spoken answer, %s repeats the question, %s pauses the session.\n", cmdRecord, cmdReplay, cmdQuit)

	if err := c.LoadNext(ctx); err != nil {
		d.warn(err)
	}
	shown := 0
	for c.State() != interview.Complete {
		q, ok := c.Question()
		if !ok {
			fmt.Fprint(d.out, "Press enter to retry loading the question: ")
			line, err := d.read(ctx)
			if err != nil {
				return err
			}
			switch line {
			case cmdQuit:
				return errQuit
			case cmdDone:
				if err := c.ForceComplete(ctx); err != nil {
					notice.Fprintf(d.out, "The interview can be finished from question %d onwards.\n", c.ForceCompleteFloor())
				}
				continue
			}
			if err := c.LoadNext(ctx); err != nil {
				d.warn(err)
			}
			continue
		}
		if q.Number != shown {
			shown = q.Number
			fmt.Fprintf(d.out, "\n%s\n%s\n", tui.TitleStyle.Render(fmt.Sprintf("Question %d of %d", q.Number, q.Total)), q.Text)
			if c.CanForceComplete() {
				fmt.Fprintln(d.out, tui.DimStyle.Render(cmdDone+" finishes the interview now."))
			}
		}

		fmt.Fprint(d.out, "> ")
		line, err := d.read(ctx)
		if err != nil {
			return err
		}
		switch line {
		case "":
			continue
		case cmdQuit:
			return errQuit
		case cmdReplay:
			c.Replay()
			continue
		case cmdDone:
			if err := c.ForceComplete(ctx); err != nil {
				notice.Fprintf(d.out, "The interview can be finished from question %d onwards.\n", c.ForceCompleteFloor())
			}
			continue
		case cmdRecord:
			if err := d.recordAnswer(ctx, c); err != nil {
				return err
			}
			continue
		}
		d.submit(ctx, c, line)
	}

	out := c.Outcome()
	fmt.Fprintf(d.out, "\n%s Interview complete: %d answers recorded.\n", tui.StageDone, len(out.Answers))
	return nil
}

func (d *consoleDriver) submit(ctx context.Context, c *interview.Controller, text string) {
	if err := c.SetAnswer(text); err != nil {
		failed.Fprintln(d.out, err)
		return
	}
	if err := c.Submit(ctx); err != nil {
		if errors.Is(err, interview.ErrEmptyAnswer) {
			notice.Fprintln(d.out, "Please enter an answer before submitting.")
			return
		}
		if errors.Is(err, interview.ErrNextQuestionUnavailable) {
			d.warn(err)
			notice.Fprintln(d.out, "Your answer was saved, but the next question could not be loaded.")
			return
		}
		d.warn(err)
		notice.Fprintln(d.out, "Your answer was not sent. Type it again to retry.")
	}
}

// recordAnswer captures one spoken answer. Transcription failures fall
// back to typing.
func (d *consoleDriver) recordAnswer(ctx context.Context, c *interview.Controller) error {
	if err := c.StartRecording(ctx); err != nil {
		if errors.Is(err, media.ErrDeviceUnavailable) {
			notice.Fprintln(d.out, "Microphone unavailable. Please type your answer.")
			return nil
		}
		failed.Fprintln(d.out, err)
		return nil
	}
	fmt.Fprint(d.out, color.RedString("● Recording")+" press enter to stop ")
	if _, err := d.read(ctx); err != nil {
		_, _ = c.StopRecording(ctx)
		return err
	}

	fmt.Fprintln(d.out, "Transcribing...")
	text, err := c.StopRecording(ctx)
	switch {
	case errors.Is(err, media.ErrDeviceUnavailable):
		notice.Fprintln(d.out, "Microphone unavailable. Please type your answer.")
		return nil
	case errors.Is(err, interview.ErrNoSpeech):
		notice.Fprintln(d.out, "No audio was captured. Try again or type your answer.")
		return nil
	case err != nil:
		d.warn(err)
		notice.Fprintln(d.out, "Transcription failed. Please type your answer.")
		return nil
	}

	fmt.Fprintf(d.out, "You said: %s\n", text)
	fmt.Fprint(d.out, "Press enter to submit it, or type a replacement: ")
	line, err := d.read(ctx)
	if err != nil {
		return err
	}
	if line == "" {
		line = c.Buffer()
	}
	if line == cmdQuit {
		return errQuit
	}
	d.submit(ctx, c, line)
	return nil
}

// Assessment shows the task in the editor when attached to a terminal and
// in line mode otherwise.
func (d *consoleDriver) Assessment(ctx context.Context, c *assessment.Controller) error {
	d.heading(session.StageAssessment)
	if d.editor {
		err := tui.RunAssessment(ctx, c)
		if errors.Is(err, tui.ErrQuit) {
			return errQuit
		}
		if err != nil {
			return err
		}
		d.printAck(c)
		return nil
	}
	return d.lineAssessment(ctx, c)
}

func (d *consoleDriver) lineAssessment(ctx context.Context, c *assessment.Controller) error {
	task := c.Task()
	if task == nil {
		return nil
	}
	fmt.Fprintln(d.out, tui.DescribeTask(task))
	fmt.Fprintf(d.out, "Time limit: %s. Press enter to start, or %s to skip.\n", timer.Format(c.Remaining()), cmdSkip)

	for c.State() == assessment.Introduction {
		line, err := d.read(ctx)
		if err != nil {
			return err
		}
		switch line {
		case cmdSkip:
			if d.confirmSkip(ctx, c) {
				return nil
			}
		case cmdQuit:
			return errQuit
		default:
			if err := c.Begin(ctx); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(d.out, "Timer started. Enter your solution; finish with a line containing only %s.\n", cmdSubmit)
	if task.StarterCode != "" && task.Type == api.TaskCoding {
		fmt.Fprintf(d.out, "Starter code:\n%s\n", task.StarterCode)
	}

	var lines []string
	for c.State() == assessment.Timed {
		line, err := d.in.Read(ctx, c.Done())
		if errors.Is(err, errStopped) {
			break
		}
		if errors.Is(err, errInputClosed) {
			line = cmdSubmit
		} else if err != nil {
			c.Pause()
			return err
		}
		switch line {
		case cmdSubmit:
			if err := c.SetSolution(strings.Join(lines, "\n")); err != nil {
				continue
			}
			if err := c.Submit(ctx); err != nil && !errors.Is(err, assessment.ErrAlreadySubmitted) {
				d.warn(err)
			}
		case cmdSkip:
			d.confirmSkip(ctx, c)
		default:
			lines = append(lines, line)
			_ = c.SetSolution(strings.Join(lines, "\n"))
			if rem := c.Remaining(); rem <= 60 {
				notice.Fprintf(d.out, "%s left\n", timer.Format(rem))
			}
		}
	}

	<-c.Done()
	if o := c.Outcome(); o.Trigger == assessment.TriggerExpired {
		notice.Fprintln(d.out, "Time is up. Your solution was submitted automatically.")
	}
	d.printAck(c)
	return nil
}

func (d *consoleDriver) confirmSkip(ctx context.Context, c *assessment.Controller) bool {
	fmt.Fprint(d.out, "Skip the assessment? It cannot be resumed. [y/N]: ")
	line, err := d.in.Read(ctx, c.Done())
	if err != nil {
		return false
	}
	answer := strings.ToLower(line)
	if err := c.Skip(answer == "y" || answer == "yes"); err != nil {
		return false
	}
	fmt.Fprintln(d.out, "Assessment skipped.")
	return true
}

func (d *consoleDriver) printAck(c *assessment.Controller) {
	ack, err := c.Acknowledgement()
	switch ack {
	case assessment.AckAcknowledged:
		fmt.Fprintf(d.out, "%s Assessment submitted.\n", tui.StageDone)
	case assessment.AckFailed:
		failed.Fprintf(d.out, "Your solution was saved locally but the service did not confirm it: %s\n", gateway.UserMessage(err))
	}
}

// Report prints the final evaluation.
func (d *consoleDriver) Report(_ context.Context, rep *api.Report) error {
	d.heading(session.StageReport)
	fmt.Fprint(d.out, report.Format(rep))
	if d.reportDir != "" {
		fmt.Fprintf(d.out, "Saved to %s\n", report.SessionDir(d.reportDir, rep.SessionMetadata.SessionID))
	}
	return nil
}
