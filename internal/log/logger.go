// Package log provides structured event logging.
// This file appends JSON events to .hirepath/log.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventSessionStarted      = "session_started"
	EventSessionResumed      = "session_resumed"
	EventStageCompleted      = "stage_completed"
	EventCVUploaded          = "cv_uploaded"
	EventQuestionLoaded      = "question_loaded"
	EventAnswerSubmitted     = "answer_submitted"
	EventInterviewComplete   = "interview_complete"
	EventTranscriptionFailed = "transcription_failed"
	EventCaptureFailed       = "capture_failed"
	EventPlaybackSkipped     = "playback_skipped"
	EventRequestRetry        = "request_retry"
	EventRequestFailed       = "request_failed"
	EventAssessmentLoaded    = "assessment_loaded"
	EventAssessmentSubmitted = "assessment_submitted"
	EventAssessmentSkipped   = "assessment_skipped"
	EventAssessmentPaused    = "assessment_paused"
	EventReportGenerated     = "report_generated"
	EventCacheWriteFailed    = "cache_write_failed"
)

// LogEvent represents a single structured event written to the log.
type LogEvent struct {
	Time       time.Time              `json:"time"`
	Event      string                 `json:"event"`
	SessionID  string                 `json:"session,omitempty"`
	Stage      string                 `json:"stage,omitempty"`
	Endpoint   string                 `json:"endpoint,omitempty"`
	Question   int                    `json:"question,omitempty"`
	Total      int                    `json:"total,omitempty"`
	Answers    int                    `json:"answers,omitempty"`
	Attempt    int                    `json:"attempt,omitempty"`
	Status     int                    `json:"status,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Error      string                 `json:"error,omitempty"`
	ElapsedSec int                    `json:"elapsed_sec,omitempty"`
	DurationMs int64                  `json:"duration_ms,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Logger writes append-only JSONL events to a log file.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a Logger that writes to .hirepath/log.jsonl inside dir.
// Creates the .hirepath/ directory if it does not already exist.
// Does not truncate an existing log file.
func NewLogger(dir string) (*Logger, error) {
	stateDir := filepath.Join(dir, ".hirepath")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create .hirepath directory: %w", err)
	}

	return &Logger{
		path: filepath.Join(stateDir, "log.jsonl"),
	}, nil
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// Append writes a single LogEvent as one JSON line to the log file.
// If event.Time is the zero value, it is automatically set to time.Now().UTC().
// Appending to a nil Logger is a no-op so callers can run without a log.
func (l *Logger) Append(event LogEvent) error {
	if l == nil {
		return nil
	}
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}

	return nil
}

// Record appends event and discards any write error. Logging never blocks
// stage progress.
func (l *Logger) Record(event LogEvent) {
	_ = l.Append(event)
}

// ReadAll reads and parses all events from the log file.
// Returns an empty slice (not an error) if the file does not exist.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LogEvent{}, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse log line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	return events, nil
}

// ForSession returns the events recorded for one session, in log order.
func ForSession(events []LogEvent, sessionID string) []LogEvent {
	var out []LogEvent
	for _, e := range events {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}
