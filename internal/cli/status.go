// status.go implements the "hirepath status" command showing cached
// sessions or one session's remote progress.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/hirepath/hirepath/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status [session-id]",
	Short: "Show session progress",
	Long: `Without arguments, list recent sessions from the local cache. With a
session id, show the progress recorded by the evaluation service.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var limitFlag int

func init() {
	statusCmd.Flags().IntVar(&limitFlag, "limit", 20, "Maximum number of cached sessions to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(dirFlag)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(args) == 0 {
		return listSessions(a)
	}

	st, err := a.client.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("fetching status: %w", err)
	}

	fmt.Printf("Session %s\n", st.SessionID)
	fmt.Printf("Status:  %s\n", st.Status)
	fmt.Printf("Stage:   %s\n\n", session.StageFromStatus(st))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Step", "Progress"})
	table.SetAutoWrapText(false)
	table.Append([]string{"CV uploaded", yesNo(st.Progress.CVUploaded)})
	table.Append([]string{"Questions answered", fmt.Sprintf("%d/%d", st.Progress.QuestionsAnswered, st.Progress.TotalQuestions)})
	table.Append([]string{"Assessment complete", yesNo(st.Progress.AssessmentComplete)})
	table.Append([]string{"Report generated", yesNo(st.Progress.ReportGenerated)})
	table.Render()
	return nil
}

func listSessions(a *app) error {
	if a.store == nil {
		return errors.New("session cache unavailable")
	}
	sessions, err := a.store.List(limitFlag)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found; start one with: hirepath run")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Session", "Stage", "Answers", "Updated"})
	table.SetAutoWrapText(false)
	for _, s := range sessions {
		table.Append([]string{
			s.ID,
			string(s.Stage),
			strconv.Itoa(s.Answers),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
