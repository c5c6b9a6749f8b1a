// app.go wires configuration, logging, the service client and the local
// cache shared by every command.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/config"
	"github.com/hirepath/hirepath/internal/gateway"
	"github.com/hirepath/hirepath/internal/log"
	"github.com/hirepath/hirepath/internal/media"
	"github.com/hirepath/hirepath/internal/session"
)

// app holds the collaborators a command needs.
type app struct {
	dir    string
	cfg    *config.Config
	logger *log.Logger
	client *api.Client
	store  *session.Store
}

// newApp loads configuration from dir and opens the log and the cache.
// A cache that cannot be opened is reported and skipped.
func newApp(dir string) (*app, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}
	logger, err := log.NewLogger(abs)
	if err != nil {
		return nil, err
	}

	gw, err := gateway.New(cfg.Server.BaseURL, gateway.Options{
		MaxRetries: cfg.Gateway.MaxRetries,
		RetryDelay: cfg.RetryDelay(),
		RateLimit:  cfg.Gateway.RateLimit,
		RateWindow: cfg.RateWindow(),
		Timeout:    cfg.Timeout(),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	a := &app{dir: abs, cfg: cfg, logger: logger, client: api.New(gw)}

	store, err := session.NewStore(filepath.Join(config.StateDir(abs), "sessions.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: session cache unavailable: %v\n", err)
	} else {
		a.store = store
	}
	return a, nil
}

// Close releases the cache.
func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// mediaOptions turns voice features on or off for one run.
type mediaOptions struct {
	voice    bool
	playback bool
}

// media builds the prompt playback channel and the microphone recorder.
// Features whose binaries are missing are disabled with a warning.
// sessionID is read when a prompt is synthesized.
func (a *app) media(opts mediaOptions, sessionID *string) (*media.Playback, *media.Recorder) {
	var (
		playback *media.Playback
		recorder *media.Recorder
	)
	if opts.playback {
		player := media.ExecPlayer{Command: a.cfg.Audio.Player}
		if err := player.Check(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: prompt playback disabled: %v\n", err)
		} else {
			synth := func(ctx context.Context, text string) (string, error) {
				return a.client.TextToSpeech(ctx, *sessionID, text)
			}
			playback = media.NewPlayback(synth, player, a.cfg.Audio.PlaybackFailureThreshold, a.logger)
		}
	}
	if opts.voice {
		mic := media.FFmpegMicrophone{Format: a.cfg.Audio.InputFormat, Device: a.cfg.Audio.InputDevice}
		if err := mic.CheckFFmpeg(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: voice answers disabled: %v\n", err)
		} else {
			recorder = media.NewRecorder(mic, a.logger)
		}
	}
	return playback, recorder
}
