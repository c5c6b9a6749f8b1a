// run.go implements the "hirepath run" command which drives a new session
// through intake -> interview -> assessment -> report.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hirepath/hirepath/internal/session"
	"github.com/hirepath/hirepath/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run [cv-path]",
	Short: "Start a new evaluation session",
	Long: `Start a new evaluation session: upload a CV, answer the interview
questions by voice or keyboard, complete the timed assessment, and view the
final report. The session can be resumed later if it is interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var (
	noVoiceFlag    bool
	noPlaybackFlag bool
	lineModeFlag   bool
)

func init() {
	for _, c := range []*cobra.Command{runCmd, resumeCmd} {
		c.Flags().BoolVar(&noVoiceFlag, "no-voice", false, "Type answers instead of recording them")
		c.Flags().BoolVar(&noPlaybackFlag, "no-playback", false, "Do not speak interview questions aloud")
		c.Flags().BoolVar(&lineModeFlag, "line", false, "Use plain line input for the assessment instead of the editor")
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(dirFlag)
	if err != nil {
		return err
	}
	defer a.Close()

	var cvPath string
	if len(args) > 0 {
		cvPath = args[0]
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.driveSession(ctx, cvPath, func(o *session.Orchestrator) (*session.Session, error) {
		fmt.Println("Starting a new session...")
		return o.Start(ctx)
	})
}

// driveSession builds the orchestrator, opens or resumes a session with
// open, and runs it to the end or to the first stage error.
func (a *app) driveSession(ctx context.Context, cvPath string, open func(*session.Orchestrator) (*session.Session, error)) error {
	var sessionID string
	playback, recorder := a.media(mediaOptions{
		voice:    a.cfg.Interview.Voice && !noVoiceFlag,
		playback: a.cfg.Interview.Playback && !noPlaybackFlag,
	}, &sessionID)
	if playback != nil {
		defer func() {
			playback.Stop()
			playback.Wait()
		}()
	}

	driver := &consoleDriver{
		in:        newLineReader(os.Stdin),
		out:       os.Stdout,
		cvPath:    cvPath,
		editor:    !lineModeFlag && tui.IsTTY(),
		reportDir: a.dir,
	}
	deps := session.Deps{
		Service: a.client,
		Driver:  driver,
		Store:   a.store,
		Logger:  a.logger,
		Config:  a.cfg,
		Dir:     a.dir,
	}
	if playback != nil {
		deps.Prompter = playback
	}
	if recorder != nil {
		deps.Recorder = recorder
	}
	orch := session.NewOrchestrator(deps)

	sess, err := open(orch)
	if err != nil {
		return err
	}
	sessionID = sess.ID
	if playback != nil {
		playback.SetSession(sess.ID)
	}
	fmt.Printf("Session %s\n", sess.ID)

	if err := orch.Run(ctx, sess); err != nil {
		if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
			fmt.Printf("\nSession paused at %s. Continue with: hirepath resume %s\n", sess.Stage, sess.ID)
			return nil
		}
		fmt.Fprintf(os.Stderr, "\nContinue later with: hirepath resume %s\n", sess.ID)
		return err
	}
	return nil
}
