package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"
)

// fakeMic hands out an io.Pipe and counts releases.
type fakeMic struct {
	openErr  error
	writer   *io.PipeWriter
	released int32
}

func (m *fakeMic) ContentType() string { return "audio/wav" }

func (m *fakeMic) Open(context.Context) (io.ReadCloser, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	r, w := io.Pipe()
	m.writer = w
	return &releasingReader{r: r, mic: m}, nil
}

type releasingReader struct {
	r   *io.PipeReader
	mic *fakeMic
}

func (rr *releasingReader) Read(p []byte) (int, error) { return rr.r.Read(p) }

func (rr *releasingReader) Close() error {
	atomic.AddInt32(&rr.mic.released, 1)
	rr.mic.writer.Close()
	return rr.r.Close()
}

func TestCaptureAssemblesChunksInOrder(t *testing.T) {
	mic := &fakeMic{}
	rec := NewRecorder(mic, nil)
	rec.chunkSize = 4

	capture, err := rec.BeginCapture(context.Background())
	if err != nil {
		t.Fatalf("BeginCapture failed: %v", err)
	}
	for _, chunk := range []string{"RIFF", "abcd", "ef"} {
		if _, err := mic.writer.Write([]byte(chunk)); err != nil {
			t.Fatalf("write chunk: %v", err)
		}
	}

	art, err := capture.End()
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if !bytes.Equal(art.Data, []byte("RIFFabcdef")) {
		t.Errorf("artifact = %q, want RIFFabcdef", art.Data)
	}
	if art.Chunks != 3 || art.ContentType != "audio/wav" {
		t.Errorf("chunks=%d contentType=%q", art.Chunks, art.ContentType)
	}
	if got := atomic.LoadInt32(&mic.released); got != 1 {
		t.Errorf("released = %d, want 1", got)
	}
}

func TestCaptureWithNoChunksStillReleases(t *testing.T) {
	mic := &fakeMic{}
	capture, err := NewRecorder(mic, nil).BeginCapture(context.Background())
	if err != nil {
		t.Fatalf("BeginCapture failed: %v", err)
	}

	art, err := capture.End()
	if err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if !art.Empty() {
		t.Errorf("artifact = %q, want empty", art.Data)
	}
	if got := atomic.LoadInt32(&mic.released); got != 1 {
		t.Errorf("released = %d, want 1", got)
	}

	// A second End is a no-op and does not release twice.
	capture.End()
	if got := atomic.LoadInt32(&mic.released); got != 1 {
		t.Errorf("released after second End = %d, want 1", got)
	}
}

func TestCaptureReleasesOnStreamError(t *testing.T) {
	mic := &fakeMic{}
	capture, err := NewRecorder(mic, nil).BeginCapture(context.Background())
	if err != nil {
		t.Fatalf("BeginCapture failed: %v", err)
	}
	mic.writer.Write([]byte("RIFF"))
	mic.writer.CloseWithError(errors.New("device unplugged"))

	select {
	case <-capture.(*captureHandle).done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not observe the stream error")
	}

	art, err := capture.End()
	if err == nil {
		t.Error("End should report the stream error")
	}
	if string(art.Data) != "RIFF" {
		t.Errorf("artifact = %q, want data read before the error", art.Data)
	}
	if got := atomic.LoadInt32(&mic.released); got != 1 {
		t.Errorf("released = %d, want 1", got)
	}
}

func TestBeginCaptureDeviceUnavailable(t *testing.T) {
	tests := []struct {
		name string
		mic  Microphone
	}{
		{"open fails", &fakeMic{openErr: errors.New("permission denied")}},
		{"no microphone", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecorder(tt.mic, nil).BeginCapture(context.Background())
			if !errors.Is(err, ErrDeviceUnavailable) {
				t.Errorf("err = %v, want ErrDeviceUnavailable", err)
			}
		})
	}
}
