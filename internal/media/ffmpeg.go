package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const (
	// stopGrace is how long ffmpeg gets to flush after an interrupt.
	stopGrace = 3 * time.Second
	// defaultStartupWait bounds how long Open waits for the first audio.
	defaultStartupWait = 500 * time.Millisecond
)

// FFmpegMicrophone captures 16 kHz mono WAV from an ffmpeg input device.
type FFmpegMicrophone struct {
	Binary string // defaults to "ffmpeg"
	Format string // ffmpeg -f value: avfoundation, pulse, alsa, dshow
	Device string // ffmpeg -i value
	// StartupWait bounds how long Open waits for audio before returning.
	StartupWait time.Duration
}

// CheckFFmpeg verifies the binary is on PATH.
func (m FFmpegMicrophone) CheckFFmpeg() error {
	if _, err := exec.LookPath(m.binary()); err != nil {
		return fmt.Errorf("%s not found. Install with: brew install ffmpeg (or your package manager)", m.binary())
	}
	return nil
}

func (m FFmpegMicrophone) binary() string {
	if m.Binary == "" {
		return "ffmpeg"
	}
	return m.Binary
}

// ContentType is the media type of the produced stream.
func (m FFmpegMicrophone) ContentType() string {
	return "audio/wav"
}

// Open starts ffmpeg writing WAV to stdout and waits up to StartupWait for
// the first bytes. If ffmpeg exits before producing any audio the device is
// reported unavailable. Closing the returned stream interrupts ffmpeg,
// which releases the device.
func (m FFmpegMicrophone) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := m.CheckFFmpeg(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	cmd := exec.Command(m.binary(), m.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting ffmpeg: %v", ErrDeviceUnavailable, err)
	}

	s := &ffmpegStream{cmd: cmd, stdout: stdout, exited: make(chan struct{}), first: make(chan firstChunk, 1)}
	go s.readFirst()

	wait := m.StartupWait
	if wait <= 0 {
		wait = defaultStartupWait
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case c := <-s.first:
		s.first = nil
		if len(c.data) == 0 && c.err != nil {
			s.reap()
			if s.waitErr != nil {
				return nil, fmt.Errorf("%w: ffmpeg exited: %v", ErrDeviceUnavailable, s.waitErr)
			}
			return nil, fmt.Errorf("%w: ffmpeg produced no audio", ErrDeviceUnavailable)
		}
		s.src = c.reader(stdout)
	case <-timer.C:
		// Slow devices may take longer to deliver the header; the first
		// Read picks the chunk up.
	case <-ctx.Done():
		s.interrupt()
		go func() {
			<-s.first
			s.reap()
		}()
		return nil, ctx.Err()
	}

	s.stopCtx = context.AfterFunc(ctx, s.interrupt)
	return s, nil
}

func (m FFmpegMicrophone) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", m.Format,
		"-i", m.Device,
		"-ac", "1",
		"-ar", "16000",
		"-f", "wav",
		"pipe:1",
	}
}

// firstChunk is the result of the first read from ffmpeg's stdout.
type firstChunk struct {
	data []byte
	err  error
}

// reader replays the chunk ahead of the rest of the stream.
func (c firstChunk) reader(rest io.Reader) io.Reader {
	if c.err != nil {
		return io.MultiReader(bytes.NewReader(c.data), errReader{c.err})
	}
	return io.MultiReader(bytes.NewReader(c.data), rest)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// ffmpegStream reads ffmpeg's stdout and reaps the process at EOF.
type ffmpegStream struct {
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stopCtx func() bool

	// first delivers the startup read when Open returned before it
	// finished; src is the reader once it is known.
	first chan firstChunk
	src   io.Reader

	closeOnce sync.Once
	waitOnce  sync.Once
	waitErr   error
	exited    chan struct{}
	read      int64
}

func (s *ffmpegStream) readFirst() {
	buf := make([]byte, defaultChunkSize)
	n, err := s.stdout.Read(buf)
	s.first <- firstChunk{data: buf[:n], err: err}
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	if s.src == nil {
		s.src = (<-s.first).reader(s.stdout)
		s.first = nil
	}
	n, err := s.src.Read(p)
	s.read += int64(n)
	if err != nil {
		s.reap()
		if errors.Is(err, io.EOF) && s.waitErr != nil && s.read == 0 {
			return n, fmt.Errorf("%w: ffmpeg exited: %v", ErrDeviceUnavailable, s.waitErr)
		}
	}
	return n, err
}

// reap waits for ffmpeg once all output has been read.
func (s *ffmpegStream) reap() {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
		close(s.exited)
	})
}

// Close detaches the stream from its context and interrupts ffmpeg.
func (s *ffmpegStream) Close() error {
	if s.stopCtx != nil {
		s.stopCtx()
	}
	s.interrupt()
	return nil
}

// interrupt signals ffmpeg and kills it if it has not exited after
// stopGrace.
func (s *ffmpegStream) interrupt() {
	s.closeOnce.Do(func() {
		if s.cmd.Process == nil {
			return
		}
		_ = s.cmd.Process.Signal(os.Interrupt)
		go func() {
			select {
			case <-s.exited:
			case <-time.After(stopGrace):
				_ = s.cmd.Process.Kill()
			}
		}()
	})
}
