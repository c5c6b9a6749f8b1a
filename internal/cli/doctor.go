// doctor.go implements the "hirepath doctor" command which checks the local
// setup before a session.
package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hirepath/hirepath/internal/media"
	"github.com/hirepath/hirepath/internal/tui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, service reachability and audio tools",
	RunE:  runDoctor,
}

type checkResult struct {
	name string
	err  error
	warn bool // failure degrades a feature instead of blocking a session
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := newApp(dirFlag)
	if err != nil {
		printCheck(checkResult{name: "configuration", err: err})
		return errors.New("doctor found problems")
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	results := []checkResult{{name: "configuration"}}

	ping, pingErr := a.client.Ping(ctx)
	svc := checkResult{name: "evaluation service " + a.cfg.Server.BaseURL, err: pingErr}
	if pingErr == nil && ping.Version != "" {
		svc.name += " (v" + ping.Version + ")"
	}
	results = append(results, svc)

	var cacheErr error
	if a.store == nil {
		cacheErr = errors.New("session cache could not be opened")
	}
	results = append(results, checkResult{name: "session cache", err: cacheErr, warn: true})

	mic := media.FFmpegMicrophone{Format: a.cfg.Audio.InputFormat, Device: a.cfg.Audio.InputDevice}
	results = append(results, checkResult{name: "voice answers (ffmpeg)", err: mic.CheckFFmpeg(), warn: true})

	player := media.ExecPlayer{Command: a.cfg.Audio.Player}
	results = append(results, checkResult{name: "question playback (" + a.cfg.Audio.Player + ")", err: player.Check(), warn: true})

	var ttyErr error
	if !tui.IsTTY() {
		ttyErr = errors.New("not a terminal; the assessment will use line mode")
	}
	results = append(results, checkResult{name: "assessment editor", err: ttyErr, warn: true})

	failedChecks := 0
	for _, r := range results {
		printCheck(r)
		if r.err != nil && !r.warn {
			failedChecks++
		}
	}
	if failedChecks > 0 {
		return fmt.Errorf("doctor found %d blocking problem(s)", failedChecks)
	}
	return nil
}

func printCheck(r checkResult) {
	switch {
	case r.err == nil:
		fmt.Printf("%s %s\n", color.GreenString("✓"), r.name)
	case r.warn:
		fmt.Printf("%s %s: %v\n", color.YellowString("!"), r.name, r.err)
	default:
		fmt.Printf("%s %s: %v\n", color.RedString("✗"), r.name, r.err)
	}
}
