// clean.go implements the "hirepath clean" command for pruning old sessions.
package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hirepath/hirepath/internal/cleanup"
	"github.com/hirepath/hirepath/internal/session"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old completed sessions",
	Long: `Remove completed sessions from the local cache along with their saved
reports under .hirepath/sessions/. Sessions still in progress are kept.

By default, removes sessions older than the configured max_age_days (default 30).
Use --keep to keep only the N most recent completed sessions instead.
Use --dry-run to preview what would be removed.`,
	RunE: runClean,
}

var (
	keepFlag   int
	dryRunFlag bool
)

func init() {
	cleanCmd.Flags().IntVar(&keepFlag, "keep", 0, "Keep only the last N completed sessions (0 = use age-based cleanup)")
	cleanCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Preview what would be removed without deleting")
}

func runClean(cmd *cobra.Command, args []string) error {
	a, err := newApp(dirFlag)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.store == nil {
		return errors.New("session cache unavailable")
	}

	var pruned []session.Summary
	if keepFlag > 0 {
		pruned, err = cleanup.PruneKeepRecent(a.store, a.dir, keepFlag, dryRunFlag)
	} else {
		maxAge := a.cfg.Cleanup.MaxAgeDays
		if maxAge <= 0 {
			maxAge = 30
		}
		pruned, err = cleanup.PruneByAge(a.store, a.dir, maxAge, time.Now(), dryRunFlag)
	}
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	if len(pruned) == 0 {
		fmt.Println("No sessions to clean up.")
		return nil
	}

	verb := "Removed"
	if dryRunFlag {
		verb = "Would remove"
	}
	for _, s := range pruned {
		fmt.Printf("  %s %s (updated %s)\n", verb, s.ID, s.UpdatedAt.Local().Format("2006-01-02"))
	}
	fmt.Printf("%s %d session(s).\n", verb, len(pruned))
	return nil
}
