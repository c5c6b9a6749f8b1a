// Package media owns the microphone and the prompt playback channel.
// capture.go implements discrete recording sessions over a Microphone.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hirepath/hirepath/internal/log"
)

// ErrDeviceUnavailable means the microphone could not be acquired. Callers
// fall back to typed input.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// defaultChunkSize is the read size used by the capture pump.
const defaultChunkSize = 4096

// Microphone opens an exclusive audio stream. Closing the stream releases
// the device.
type Microphone interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	ContentType() string
}

// Artifact is the audio produced by one capture.
type Artifact struct {
	Data        []byte
	ContentType string
	Chunks      int
	Duration    time.Duration
}

// Empty reports whether no audio was captured.
func (a Artifact) Empty() bool {
	return len(a.Data) == 0
}

// Capture is an active recording session.
type Capture interface {
	// End stops the capture, releases the device and returns the assembled
	// artifact. Only the first call does work; later calls return the same
	// result.
	End() (Artifact, error)
}

// Recorder starts captures on a Microphone.
type Recorder struct {
	mic       Microphone
	logger    *log.Logger
	chunkSize int
	now       func() time.Time
}

// NewRecorder creates a Recorder. logger may be nil.
func NewRecorder(mic Microphone, logger *log.Logger) *Recorder {
	return &Recorder{mic: mic, logger: logger, chunkSize: defaultChunkSize, now: time.Now}
}

// BeginCapture acquires the microphone and starts buffering audio. Failure
// to acquire the device is reported as ErrDeviceUnavailable.
func (r *Recorder) BeginCapture(ctx context.Context) (Capture, error) {
	if r.mic == nil {
		return nil, fmt.Errorf("no microphone configured: %w", ErrDeviceUnavailable)
	}
	stream, err := r.mic.Open(ctx)
	if err != nil {
		r.logger.Record(log.LogEvent{Event: log.EventCaptureFailed, Error: err.Error()})
		if errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	h := &captureHandle{
		stream:      stream,
		contentType: r.mic.ContentType(),
		started:     r.now(),
		now:         r.now,
		done:        make(chan struct{}),
	}
	go h.pump(r.chunkSize)
	return h, nil
}

// captureHandle buffers chunks in arrival order until End.
type captureHandle struct {
	stream      io.ReadCloser
	contentType string
	started     time.Time
	now         func() time.Time

	mu      sync.Mutex
	chunks  [][]byte
	readErr error
	closing bool

	done    chan struct{}
	endOnce sync.Once
	result  Artifact
	endErr  error
}

func (h *captureHandle) pump(size int) {
	defer close(h.done)
	for {
		buf := make([]byte, size)
		n, err := h.stream.Read(buf)
		if n > 0 {
			h.mu.Lock()
			h.chunks = append(h.chunks, buf[:n])
			h.mu.Unlock()
		}
		if err != nil {
			h.mu.Lock()
			if !errors.Is(err, io.EOF) && !h.closing {
				h.readErr = err
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *captureHandle) End() (Artifact, error) {
	h.endOnce.Do(func() {
		h.mu.Lock()
		h.closing = true
		h.mu.Unlock()

		closeErr := h.stream.Close()
		<-h.done

		h.mu.Lock()
		defer h.mu.Unlock()
		h.result = Artifact{
			Data:        bytes.Join(h.chunks, nil),
			ContentType: h.contentType,
			Chunks:      len(h.chunks),
			Duration:    h.now().Sub(h.started),
		}
		switch {
		case h.readErr != nil:
			h.endErr = fmt.Errorf("capture stream: %w", h.readErr)
		case closeErr != nil:
			h.endErr = fmt.Errorf("releasing microphone: %w", closeErr)
		}
	})
	return h.result, h.endErr
}
