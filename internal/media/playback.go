package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/hirepath/hirepath/internal/log"
)

// SynthesizeFunc turns prompt text into a local playable file.
type SynthesizeFunc func(ctx context.Context, text string) (string, error)

// Player plays a local audio file, returning when playback finishes or ctx
// is cancelled.
type Player interface {
	Play(ctx context.Context, path string) error
}

// ExecPlayer plays files with an external command such as ffplay.
type ExecPlayer struct {
	Command string   // defaults to "ffplay"
	Args    []string // inserted before the path; ffplay gets quiet defaults
}

// Check verifies the player binary is on PATH.
func (p ExecPlayer) Check() error {
	if _, err := exec.LookPath(p.command()); err != nil {
		return fmt.Errorf("%s not found on PATH", p.command())
	}
	return nil
}

func (p ExecPlayer) command() string {
	if p.Command == "" {
		return "ffplay"
	}
	return p.Command
}

// Play runs the player and waits for it. Cancelling ctx kills the process.
func (p ExecPlayer) Play(ctx context.Context, path string) error {
	args := p.Args
	if args == nil && p.command() == "ffplay" {
		args = []string{"-nodisp", "-autoexit", "-loglevel", "quiet"}
	}
	cmd := exec.CommandContext(ctx, p.command(), append(append([]string{}, args...), path)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", p.command(), err, out)
	}
	return nil
}

// Playback is the best-effort prompt channel. At most one prompt plays at a
// time; a new Play supersedes the previous one. Failures are logged and
// never returned.
type Playback struct {
	synth   SynthesizeFunc
	player  Player
	breaker *CircuitBreaker
	logger  *log.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	sessionID string
	wg        sync.WaitGroup
}

// NewPlayback creates a channel. threshold consecutive failures open the
// breaker for the rest of the session. logger may be nil.
func NewPlayback(synth SynthesizeFunc, player Player, threshold int, logger *log.Logger) *Playback {
	return &Playback{
		synth:   synth,
		player:  player,
		breaker: NewCircuitBreaker(threshold),
		logger:  logger,
	}
}

// SetSession attributes log events to sessionID. Switching to another
// session closes the breaker, since failures are counted per session.
func (p *Playback) SetSession(sessionID string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionID != sessionID {
		p.breaker.Reset()
	}
	p.sessionID = sessionID
}

// Play starts synthesizing and playing text in the background, interrupting
// any prompt still playing. It never blocks on the network.
func (p *Playback) Play(text string) {
	if p == nil || p.synth == nil || p.player == nil || text == "" {
		return
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	sessionID := p.sessionID
	if p.breaker.Open() {
		p.mu.Unlock()
		p.skip(sessionID, "breaker_open", nil)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer cancel()
		p.run(ctx, sessionID, text)
	}()
}

func (p *Playback) run(ctx context.Context, sessionID, text string) {
	path, err := p.synth(ctx, text)
	if err != nil {
		p.fail(ctx, sessionID, "synthesis_failed", err)
		return
	}
	if path == "" {
		p.fail(ctx, sessionID, "no_audio", errors.New("no playable handle"))
		return
	}
	defer os.Remove(path)

	if err := p.player.Play(ctx, path); err != nil {
		p.fail(ctx, sessionID, "player_failed", err)
		return
	}
	p.breaker.RecordSuccess()
}

// fail counts a failure unless it was caused by supersession or Stop.
func (p *Playback) fail(ctx context.Context, sessionID, reason string, err error) {
	if ctx.Err() != nil {
		return
	}
	if p.breaker.RecordFailure() {
		reason += "; breaker_opened"
	}
	p.skip(sessionID, reason, err)
}

func (p *Playback) skip(sessionID, reason string, err error) {
	ev := log.LogEvent{
		Event:     log.EventPlaybackSkipped,
		SessionID: sessionID,
		Reason:    reason,
		Attempt:   p.breaker.Failures(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	p.logger.Record(ev)
}

// Stop interrupts the current prompt, if any.
func (p *Playback) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Wait blocks until every started prompt has finished or been interrupted.
func (p *Playback) Wait() {
	if p == nil {
		return
	}
	p.wg.Wait()
}

// Disabled reports whether the breaker has suspended playback.
func (p *Playback) Disabled() bool {
	return p != nil && p.breaker.Open()
}
