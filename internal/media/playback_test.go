package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakePlayer struct {
	mu        sync.Mutex
	played    []string
	err       error
	block     bool
	started   chan string
	cancelled int32
}

func (p *fakePlayer) Play(ctx context.Context, path string) error {
	data, _ := os.ReadFile(path)
	p.mu.Lock()
	p.played = append(p.played, string(data))
	p.mu.Unlock()
	if p.started != nil {
		p.started <- string(data)
	}
	if p.block {
		<-ctx.Done()
		atomic.AddInt32(&p.cancelled, 1)
		return ctx.Err()
	}
	return p.err
}

func (p *fakePlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

func fileSynth(t *testing.T) SynthesizeFunc {
	dir := t.TempDir()
	var n int32
	return func(_ context.Context, text string) (string, error) {
		path := filepath.Join(dir, "prompt-"+string(rune('a'+atomic.AddInt32(&n, 1)))+".mp3")
		return path, os.WriteFile(path, []byte(text), 0644)
	}
}

func TestPlaybackPlaysAndCleansUp(t *testing.T) {
	player := &fakePlayer{}
	var lastPath string
	synth := fileSynth(t)
	pb := NewPlayback(func(ctx context.Context, text string) (string, error) {
		p, err := synth(ctx, text)
		lastPath = p
		return p, err
	}, player, 3, nil)

	pb.Play("Tell me about yourself")
	pb.Wait()

	if got := player.Played(); len(got) != 1 || got[0] != "Tell me about yourself" {
		t.Errorf("played = %v", got)
	}
	if _, err := os.Stat(lastPath); !os.IsNotExist(err) {
		t.Errorf("audio file %s not removed after playback", lastPath)
	}
}

func TestPlaybackSupersedesPreviousPrompt(t *testing.T) {
	player := &fakePlayer{block: true, started: make(chan string, 2)}
	pb := NewPlayback(fileSynth(t), player, 3, nil)

	pb.Play("first")
	<-player.started
	pb.Play("second")
	<-player.started

	pb.Stop()
	pb.Wait()
	if got := atomic.LoadInt32(&player.cancelled); got != 2 {
		t.Errorf("cancelled = %d, want both prompts interrupted", got)
	}
	if pb.Disabled() {
		t.Error("interruptions must not count as failures")
	}
}

func TestPlaybackFailuresAreSwallowedAndOpenBreaker(t *testing.T) {
	var calls int32
	pb := NewPlayback(func(context.Context, string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("tts unavailable")
	}, &fakePlayer{}, 2, nil)

	for i := 0; i < 4; i++ {
		pb.Play("question")
		pb.Wait()
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("synthesis calls = %d, want 2 before the breaker opens", got)
	}
	if !pb.Disabled() {
		t.Error("breaker should be open after 2 failures")
	}
}

func TestPlaybackNewSessionClosesBreaker(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	synth := fileSynth(t)
	player := &fakePlayer{}
	pb := NewPlayback(func(ctx context.Context, text string) (string, error) {
		if fail.Load() {
			return "", errors.New("tts unavailable")
		}
		return synth(ctx, text)
	}, player, 1, nil)

	pb.SetSession("s1")
	pb.Play("question")
	pb.Wait()
	if !pb.Disabled() {
		t.Fatal("breaker should be open after a failure")
	}

	pb.SetSession("s1")
	if !pb.Disabled() {
		t.Error("same session should keep the breaker open")
	}

	fail.Store(false)
	pb.SetSession("s2")
	if pb.Disabled() {
		t.Fatal("new session should close the breaker")
	}
	pb.Play("welcome back")
	pb.Wait()
	if got := player.Played(); len(got) != 1 || got[0] != "welcome back" {
		t.Errorf("played = %v, want [welcome back]", got)
	}
}

func TestPlaybackEmptyHandleIsFailure(t *testing.T) {
	pb := NewPlayback(func(context.Context, string) (string, error) { return "", nil }, &fakePlayer{}, 1, nil)
	pb.Play("question")
	pb.Wait()
	if !pb.Disabled() {
		t.Error("missing playable handle should count as a failure")
	}
}

func TestPlaybackNilIsNoop(t *testing.T) {
	var pb *Playback
	pb.Play("x")
	pb.Stop()
	pb.Wait()

	done := make(chan struct{})
	go func() {
		NewPlayback(nil, nil, 3, nil).Play("x")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Play without synth blocked")
	}
}
