// Package interview sequences question delivery, answer capture and
// submission for the interview stage.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/clock"
	"github.com/hirepath/hirepath/internal/log"
	"github.com/hirepath/hirepath/internal/media"
)

// State is the interview stage state.
type State int

const (
	Loading State = iota
	QuestionReady
	Recording
	Transcribing
	Submitting
	Complete
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case QuestionReady:
		return "question_ready"
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	case Submitting:
		return "submitting"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultForceCompleteFloor is the question number from which the
// interview may be ended early.
const DefaultForceCompleteFloor = 8

var (
	ErrEmptyAnswer              = errors.New("answer is empty")
	ErrForceCompleteUnavailable = errors.New("interview cannot be completed yet")
	ErrInvalidState             = errors.New("action not available in current state")
	ErrNoSpeech                 = errors.New("no audio captured")

	// ErrNextQuestionUnavailable is returned by Submit when the answer was
	// accepted but the following question could not be fetched. The answer
	// must not be sent again; retry with LoadNext.
	ErrNextQuestionUnavailable = errors.New("answer saved but next question unavailable")
)

// Completion reasons reported in Outcome.
const (
	ReasonServiceComplete = "service_complete"
	ReasonNoNextQuestion  = "no_next_question"
	ReasonNoQuestion      = "no_question"
	ReasonForced          = "forced"
)

// Service is the part of the evaluation API the interview needs.
type Service interface {
	CurrentQuestion(ctx context.Context, sessionID string) (*api.QuestionResponse, error)
	SubmitAnswer(ctx context.Context, sessionID, answer string, at time.Time) (*api.AnswerResult, error)
	CompleteInterview(ctx context.Context, sessionID string) error
	SpeechToText(ctx context.Context, sessionID string, audio []byte, contentType string) (string, error)
}

// Prompter plays a question prompt, best-effort. *media.Playback satisfies it.
type Prompter interface {
	Play(text string)
}

// Recorder starts microphone captures. *media.Recorder satisfies it.
type Recorder interface {
	BeginCapture(ctx context.Context) (media.Capture, error)
}

// Question is one fetched prompt. Total may change between questions.
type Question struct {
	Number int
	Total  int
	Text   string
}

// Answer is one accepted submission.
type Answer struct {
	QuestionNumber int       `json:"question_number"`
	Question       string    `json:"question"`
	Text           string    `json:"answer"`
	CapturedAt     time.Time `json:"timestamp"`
}

// Outcome is the stage output handed to the next stage.
type Outcome struct {
	Answers []Answer `json:"answers"`
	Reason  string   `json:"reason"`
	Forced  bool     `json:"forced"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithPrompter enables best-effort question playback.
func WithPrompter(p Prompter) Option {
	return func(c *Controller) { c.prompter = p }
}

// WithRecorder enables voice answers.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithForceCompleteFloor overrides DefaultForceCompleteFloor.
func WithForceCompleteFloor(n int) Option {
	return func(c *Controller) { c.floor = n }
}

// WithAnswers seeds previously accepted answers, used when resuming.
func WithAnswers(answers []Answer) Option {
	return func(c *Controller) { c.answers = append([]Answer(nil), answers...) }
}

// Controller is the interview state machine. Methods are safe for
// concurrent use; network calls are made without the lock held, and a
// response is applied only if no other transition happened meanwhile.
type Controller struct {
	sessionID string
	svc       Service
	prompter  Prompter
	recorder  Recorder
	logger    *log.Logger
	clock     clock.Clock
	floor     int

	mu       sync.Mutex
	state    State
	question *Question
	reached  int // highest question number loaded
	answers  []Answer
	buffer   string
	capture  media.Capture
	gen      uint64
	reason   string
	forced   bool
	done     chan struct{}
}

// New creates a controller in Loading. Call LoadNext to fetch the first
// question.
func New(sessionID string, svc Service, opts ...Option) *Controller {
	c := &Controller{
		sessionID: sessionID,
		svc:       svc,
		clock:     clock.System{},
		floor:     DefaultForceCompleteFloor,
		state:     Loading,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadNext fetches the current question. A completion status, or a
// response carrying neither a question nor a completion status, completes
// the stage. On error the controller keeps its previous question if that
// question is still unanswered, and stays in Loading otherwise.
func (c *Controller) LoadNext(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Complete {
		c.mu.Unlock()
		return nil
	}
	c.state = Loading
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	resp, err := c.svc.CurrentQuestion(ctx, c.sessionID)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		if c.question != nil {
			c.state = QuestionReady
		}
		c.mu.Unlock()
		return fmt.Errorf("loading question: %w", err)
	}

	switch {
	case resp.Complete():
		c.completeLocked(ReasonServiceComplete, false)
		c.mu.Unlock()
		return nil
	case resp.HasQuestion():
		q := &Question{Number: resp.QuestionNumber, Total: resp.TotalQuestions, Text: resp.Question}
		c.question = q
		if q.Number > c.reached {
			c.reached = q.Number
		}
		c.buffer = ""
		c.state = QuestionReady
		c.mu.Unlock()

		c.logger.Record(log.LogEvent{
			Event:     log.EventQuestionLoaded,
			SessionID: c.sessionID,
			Stage:     "interview",
			Question:  q.Number,
			Total:     q.Total,
		})
		if c.prompter != nil {
			c.prompter.Play(q.Text)
		}
		return nil
	default:
		c.completeLocked(ReasonNoQuestion, false)
		c.mu.Unlock()
		return nil
	}
}

// SetAnswer replaces the answer buffer with typed text.
func (c *Controller) SetAnswer(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != QuestionReady {
		return fmt.Errorf("set answer in %s: %w", c.state, ErrInvalidState)
	}
	c.buffer = text
	return nil
}

// StartRecording acquires the microphone. media.ErrDeviceUnavailable means
// the caller should fall back to typed input.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	if c.state != QuestionReady {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("start recording in %s: %w", st, ErrInvalidState)
	}
	if c.recorder == nil {
		c.mu.Unlock()
		return fmt.Errorf("no recorder: %w", media.ErrDeviceUnavailable)
	}
	c.state = Recording
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	capture, err := c.recorder.BeginCapture(ctx)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if capture != nil {
			capture.End()
		}
		return fmt.Errorf("start recording: %w", ErrInvalidState)
	}
	if err != nil {
		c.state = QuestionReady
		c.mu.Unlock()
		c.logger.Record(log.LogEvent{Event: log.EventCaptureFailed, SessionID: c.sessionID, Stage: "interview", Error: err.Error()})
		return err
	}
	c.capture = capture
	c.mu.Unlock()
	return nil
}

// StopRecording ends the capture, releases the microphone and transcribes
// the artifact into the answer buffer. Transcription failures leave the
// buffer untouched and return the stage to QuestionReady.
func (c *Controller) StopRecording(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != Recording || c.capture == nil {
		st := c.state
		c.mu.Unlock()
		return "", fmt.Errorf("stop recording in %s: %w", st, ErrInvalidState)
	}
	capture := c.capture
	c.capture = nil
	c.state = Transcribing
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	art, endErr := capture.End()
	if art.Empty() {
		c.restoreReady(gen)
		if endErr != nil {
			return "", fmt.Errorf("%w: %w", ErrNoSpeech, endErr)
		}
		return "", ErrNoSpeech
	}

	text, err := c.svc.SpeechToText(ctx, c.sessionID, art.Data, art.ContentType)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return "", fmt.Errorf("transcription discarded: %w", ErrInvalidState)
	}
	c.state = QuestionReady
	if err != nil {
		c.logger.Record(log.LogEvent{Event: log.EventTranscriptionFailed, SessionID: c.sessionID, Stage: "interview", Error: err.Error()})
		return "", fmt.Errorf("transcription: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoSpeech
	}
	c.buffer = text
	return text, nil
}

func (c *Controller) restoreReady(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.state = QuestionReady
	}
}

// Submit sends the buffered answer. A blank buffer is rejected with
// ErrEmptyAnswer and nothing is sent. On success the answer is appended,
// the buffer cleared, and the next question loaded unless the service
// signals the end of the interview. If that load fails the error wraps
// ErrNextQuestionUnavailable and the controller stays in Loading.
//
// An answer the service accepted is always recorded, even when another
// transition such as ForceComplete happened while it was in flight.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.state != QuestionReady {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("submit in %s: %w", st, ErrInvalidState)
	}
	text := strings.TrimSpace(c.buffer)
	if text == "" {
		c.mu.Unlock()
		return ErrEmptyAnswer
	}
	q := *c.question
	c.state = Submitting
	c.gen++
	gen := c.gen
	at := c.clock.Now()
	c.mu.Unlock()

	res, err := c.svc.SubmitAnswer(ctx, c.sessionID, text, at)

	c.mu.Lock()
	stale := c.gen != gen
	if err != nil {
		if !stale {
			c.state = QuestionReady
		}
		c.mu.Unlock()
		if stale {
			return nil
		}
		return fmt.Errorf("submitting answer: %w", err)
	}
	c.answers = append(c.answers, Answer{
		QuestionNumber: q.Number,
		Question:       q.Text,
		Text:           text,
		CapturedAt:     at,
	})
	c.buffer = ""
	count := len(c.answers)

	c.logger.Record(log.LogEvent{
		Event:     log.EventAnswerSubmitted,
		SessionID: c.sessionID,
		Stage:     "interview",
		Question:  q.Number,
		Total:     q.Total,
		Answers:   count,
	})

	if stale {
		c.mu.Unlock()
		return nil
	}
	switch {
	case res.InterviewComplete:
		c.completeLocked(ReasonServiceComplete, false)
		c.mu.Unlock()
		return nil
	case !res.NextQuestionAvailable:
		c.completeLocked(ReasonNoNextQuestion, false)
		c.mu.Unlock()
		return nil
	}
	// The answered question is never offered again.
	c.question = nil
	c.mu.Unlock()
	if err := c.LoadNext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNextQuestionUnavailable, err)
	}
	return nil
}

// CanForceComplete reports whether the interview has reached the
// force-complete floor.
func (c *Controller) CanForceComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canForceLocked()
}

// ForceCompleteFloor returns the question number from which the interview
// can be finished early.
func (c *Controller) ForceCompleteFloor() int { return c.floor }

func (c *Controller) canForceLocked() bool {
	return c.state != Complete && c.reached >= c.floor
}

// ForceComplete ends the interview early. It completes locally first and
// then notifies the service; a failed notification is logged, not returned.
func (c *Controller) ForceComplete(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Complete {
		c.mu.Unlock()
		return nil
	}
	if !c.canForceLocked() {
		c.mu.Unlock()
		return ErrForceCompleteUnavailable
	}
	capture := c.capture
	c.capture = nil
	c.gen++
	c.completeLocked(ReasonForced, true)
	c.mu.Unlock()

	if capture != nil {
		capture.End()
	}
	if err := c.svc.CompleteInterview(ctx, c.sessionID); err != nil {
		c.logger.Record(log.LogEvent{
			Event:     log.EventRequestFailed,
			SessionID: c.sessionID,
			Stage:     "interview",
			Endpoint:  "complete-interview",
			Reason:    "force_complete_notify",
			Error:     err.Error(),
		})
	}
	return nil
}

// Replay plays the current prompt again.
func (c *Controller) Replay() {
	c.mu.Lock()
	q := c.question
	ready := c.state == QuestionReady
	c.mu.Unlock()
	if ready && q != nil && c.prompter != nil {
		c.prompter.Play(q.Text)
	}
}

// completeLocked moves to Complete once. c.mu must be held.
func (c *Controller) completeLocked(reason string, forced bool) {
	if c.state == Complete {
		return
	}
	c.state = Complete
	c.reason = reason
	c.forced = forced
	c.buffer = ""
	close(c.done)
	c.logger.Record(log.LogEvent{
		Event:     log.EventInterviewComplete,
		SessionID: c.sessionID,
		Stage:     "interview",
		Answers:   len(c.answers),
		Reason:    reason,
	})
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Question returns the current question, or false before the first fetch.
func (c *Controller) Question() (Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.question == nil {
		return Question{}, false
	}
	return *c.question, true
}

// Answers returns a copy of the accepted answers in submission order.
func (c *Controller) Answers() []Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Answer(nil), c.answers...)
}

// Buffer returns the pending answer text.
func (c *Controller) Buffer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer
}

// Done is closed when the stage completes.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Outcome returns the stage output. It is meaningful once Done is closed.
func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Outcome{
		Answers: append([]Answer(nil), c.answers...),
		Reason:  c.reason,
		Forced:  c.forced,
	}
}
