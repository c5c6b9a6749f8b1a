// resume.go implements the "hirepath resume" command for continuing an
// interrupted session.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hirepath/hirepath/internal/session"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume an interrupted session",
	Long: `Resume a previously interrupted session. Progress recorded by the
evaluation service takes precedence over the local cache, so the session
continues from the furthest stage either of them has reached.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func runResume(cmd *cobra.Command, args []string) error {
	a, err := newApp(dirFlag)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.driveSession(ctx, "", func(o *session.Orchestrator) (*session.Session, error) {
		sess, err := o.Resume(ctx, args[0])
		if err != nil {
			return nil, fmt.Errorf("resuming session %s: %w", args[0], err)
		}
		if sess.Stage == session.StageComplete {
			fmt.Println("This session is already complete. View it with: hirepath report", sess.ID)
		} else {
			fmt.Printf("Resuming at stage: %s\n", sess.Stage)
		}
		return sess, nil
	})
}
