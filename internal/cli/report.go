// report.go implements the "hirepath report" command for viewing a
// session's final evaluation.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hirepath/hirepath/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <session-id>",
	Short: "Show a session's final report",
	Long: `Display the final evaluation report for a session. The saved copy
under .hirepath/sessions/<id>/ is shown when present; otherwise the report
is fetched from the evaluation service and saved.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

var refreshFlag bool

func init() {
	reportCmd.Flags().BoolVar(&refreshFlag, "refresh", false, "Fetch the report from the service even if a saved copy exists")
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := newApp(dirFlag)
	if err != nil {
		return err
	}
	defer a.Close()

	id := args[0]
	dir := report.SessionDir(a.dir, id)

	if !refreshFlag {
		if rep, readErr := report.Read(dir); readErr == nil {
			fmt.Print(report.Format(rep))
			return nil
		}
	}

	rep, err := report.Generate(cmd.Context(), a.client, id, a.dir, a.logger)
	if rep == nil {
		return err
	}
	fmt.Print(report.Format(rep))
	if err != nil {
		notice.Printf("Warning: %v\n", err)
		return nil
	}
	fmt.Printf("Saved to %s\n", dir)
	return nil
}
