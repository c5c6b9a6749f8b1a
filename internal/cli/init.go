// init.go implements the "hirepath init" command with optional --guided flag.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hirepath/hirepath/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize hirepath in the current directory",
	Long: `Create the .hirepath/ directory with a default configuration. The
audio capture format is chosen for the current platform; use --guided to
review the service URL and audio settings interactively.`,
	RunE: runInit,
}

var (
	guidedFlag bool
	serverFlag string
)

func init() {
	initCmd.Flags().BoolVar(&guidedFlag, "guided", false, "Interactive prompts for configuration overrides")
	initCmd.Flags().StringVar(&serverFlag, "server", "", "Evaluation service base URL")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(dirFlag)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dirFlag, err)
	}
	reader := bufio.NewReader(os.Stdin)

	stateDir := config.StateDir(dir)
	if info, statErr := os.Stat(stateDir); statErr == nil && info.IsDir() {
		fmt.Println("Warning: .hirepath/ directory already exists.")
		fmt.Print("Reinitialize? Sessions are kept, the configuration is replaced. [y/N]: ")
		answer, _ := reader.ReadString('\n')
		answer = strings.TrimSpace(strings.ToLower(answer))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	cfg.Audio.InputFormat, cfg.Audio.InputDevice = platformAudioInput()
	if serverFlag != "" {
		cfg.Server.BaseURL = serverFlag
	}
	if guidedFlag {
		guidedOverrides(reader, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(stateDir, "sessions"), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := config.WriteConfig(dir, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := ensureGitignore(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to set up .gitignore: %v\n", err)
	}

	fmt.Println()
	fmt.Println("hirepath initialized")
	fmt.Printf("  Service:      %s\n", cfg.Server.BaseURL)
	fmt.Printf("  Audio input:  %s %s\n", cfg.Audio.InputFormat, cfg.Audio.InputDevice)
	fmt.Printf("  Audio player: %s\n", cfg.Audio.Player)
	fmt.Println()
	fmt.Println("Configuration written to .hirepath/config.yaml")
	fmt.Println("Check your setup with: hirepath doctor")
	fmt.Println("Then start a session:  hirepath run path/to/cv.pdf")
	return nil
}

// platformAudioInput returns the ffmpeg capture format and device for the
// running OS.
func platformAudioInput() (string, string) {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

// guidedOverrides prompts for optional configuration overrides. An empty
// answer keeps the current value.
func guidedOverrides(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println()
	fmt.Println("--- Guided Configuration ---")

	ask := func(label, current string) string {
		fmt.Printf("%s [%s]: ", label, current)
		v, err := reader.ReadString('\n')
		if err != nil {
			return current
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
		return current
	}

	cfg.Server.BaseURL = ask("Service URL", cfg.Server.BaseURL)
	cfg.Audio.InputFormat = ask("Audio capture format", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = ask("Audio capture device", cfg.Audio.InputDevice)
	cfg.Audio.Player = ask("Audio player", cfg.Audio.Player)

	voice := ask("Record spoken answers (y/n)", yesNo(cfg.Interview.Voice))
	cfg.Interview.Voice = strings.HasPrefix(strings.ToLower(voice), "y")
	playback := ask("Speak questions aloud (y/n)", yesNo(cfg.Interview.Playback))
	cfg.Interview.Playback = strings.HasPrefix(strings.ToLower(playback), "y")

	floor := ask("Questions before the interview can be finished early", strconv.Itoa(cfg.Interview.ForceCompleteFloor))
	if n, err := strconv.Atoi(floor); err == nil && n > 0 {
		cfg.Interview.ForceCompleteFloor = n
	}

	fmt.Println("--- End Guided Configuration ---")
	fmt.Println()
}

// ensureGitignore appends the runtime entries under .hirepath/ that should
// never be committed. Entries already present are skipped.
func ensureGitignore(dir string) error {
	gitignorePath := filepath.Join(dir, ".gitignore")

	requiredEntries := []string{
		".env",
		".hirepath/log.jsonl",
		".hirepath/sessions.db",
		".hirepath/sessions/",
	}

	existing := ""
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
	}

	var missing []string
	for _, entry := range requiredEntries {
		if !strings.Contains(existing, entry) {
			missing = append(missing, entry)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var toAppend strings.Builder
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		toAppend.WriteString("\n")
	}
	if existing != "" {
		toAppend.WriteString("\n# Added by hirepath init\n")
	}
	for _, entry := range missing {
		toAppend.WriteString(entry + "\n")
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening .gitignore: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(toAppend.String()); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}
