// Package assessment runs the timed skills exercise. Submission is reached
// from a manual submit or from countdown expiry; a single-use latch makes
// sure only one of them dispatches.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/clock"
	"github.com/hirepath/hirepath/internal/log"
	"github.com/hirepath/hirepath/internal/timer"
)

// State is the assessment stage state.
type State int

const (
	Loading State = iota
	Introduction
	Timed
	Submitted
	Abandoned
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Introduction:
		return "introduction"
	case Timed:
		return "timed"
	case Submitted:
		return "submitted"
	case Abandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s ends the stage.
func (s State) Terminal() bool {
	return s == Submitted || s == Abandoned
}

// AckStatus tracks the service's acknowledgement of a submission,
// separately from the local stage state.
type AckStatus int

const (
	AckNone AckStatus = iota
	AckPending
	AckAcknowledged
	AckFailed
)

func (a AckStatus) String() string {
	switch a {
	case AckPending:
		return "pending"
	case AckAcknowledged:
		return "acknowledged"
	case AckFailed:
		return "failed"
	default:
		return "none"
	}
}

// Submission triggers.
const (
	TriggerManual  = "manual"
	TriggerExpired = "expired"
)

var (
	ErrAlreadySubmitted = errors.New("assessment already submitted")
	ErrSkipNotConfirmed = errors.New("skipping the assessment must be confirmed")
	ErrInvalidState     = errors.New("action not available in current state")
)

// Service is the part of the evaluation API the assessment needs.
type Service interface {
	StartAssessment(ctx context.Context, sessionID string) (*api.AssessmentTask, error)
	SubmitAssessment(ctx context.Context, sessionID string, sub api.Submission, key string) error
}

// Outcome is the stage output handed to the report stage.
type Outcome struct {
	State      string              `json:"state"`
	Task       *api.AssessmentTask `json:"task,omitempty"`
	Submission *api.Submission     `json:"submission,omitempty"`
	Trigger    string              `json:"trigger,omitempty"`
	Ack        string              `json:"ack"`
	AckError   string              `json:"ack_error,omitempty"`
	LoadError  string              `json:"load_error,omitempty"`
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithTickSource replaces the one-second ticker, for tests.
func WithTickSource(fn func() clock.TickSource) Option {
	return func(c *Controller) { c.newTicks = fn }
}

// WithOnTick registers a callback receiving the remaining seconds after
// every tick. It runs on the ticking goroutine.
func WithOnTick(fn func(remaining int)) Option {
	return func(c *Controller) { c.onTick = fn }
}

// Controller is the assessment state machine.
type Controller struct {
	sessionID string
	svc       Service
	logger    *log.Logger
	clock     clock.Clock
	newTicks  func() clock.TickSource
	onTick    func(int)
	countdown *timer.Countdown

	mu         sync.Mutex
	state      State
	task       *api.AssessmentTask
	solution   string
	latched    bool
	submission *api.Submission
	trigger    string
	ack        AckStatus
	ackErr     error
	dispatch   context.Context
	stopRun    context.CancelFunc
	loadErrors int
	paused     bool

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a controller in Loading.
func New(sessionID string, svc Service, opts ...Option) *Controller {
	c := &Controller{
		sessionID: sessionID,
		svc:       svc,
		clock:     clock.System{},
		newTicks:  clock.NewSecondTicker,
		state:     Loading,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.countdown = timer.New(
		timer.OnExpire(c.expire),
		timer.OnTick(func(remaining int) {
			if c.onTick != nil {
				c.onTick(remaining)
			}
		}),
	)
	return c
}

// Load fetches the task. Coding tasks seed the solution with their starter
// code. A failed load leaves the stage in Loading so it can be retried or
// skipped.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Loading {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("load in %s: %w", st, ErrInvalidState)
	}
	c.mu.Unlock()

	task, err := c.svc.StartAssessment(ctx, c.sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Loading {
		return fmt.Errorf("load discarded in %s: %w", c.state, ErrInvalidState)
	}
	if err != nil {
		c.loadErrors++
		return fmt.Errorf("loading assessment: %w", err)
	}
	c.task = task
	if task.Type == api.TaskCoding && task.StarterCode != "" {
		c.solution = task.StarterCode
	}
	c.state = Introduction
	c.logger.Record(log.LogEvent{
		Event:     log.EventAssessmentLoaded,
		SessionID: c.sessionID,
		Stage:     "assessment",
		Reason:    task.Type,
		Total:     task.TimeLimitSeconds(),
	})
	return nil
}

// LoadErrors returns how many loads have failed.
func (c *Controller) LoadErrors() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErrors
}

// Begin starts the countdown. An expiry submits using ctx.
func (c *Controller) Begin(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Introduction {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("begin in %s: %w", st, ErrInvalidState)
	}
	c.state = Timed
	c.dispatch = ctx
	runCtx, stop := context.WithCancel(ctx)
	c.stopRun = stop
	limit := c.task.TimeLimitSeconds()
	c.mu.Unlock()

	if err := c.countdown.Start(limit); err != nil {
		stop()
		return fmt.Errorf("starting countdown: %w", err)
	}
	if c.countdown.State() == timer.Running {
		go c.countdown.Run(runCtx, c.newTicks())
	}
	return nil
}

// SetSolution replaces the solution text before submission.
func (c *Controller) SetSolution(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Introduction && c.state != Timed {
		return fmt.Errorf("edit in %s: %w", c.state, ErrInvalidState)
	}
	c.solution = text
	return nil
}

// Submit sends the solution. The stage is Submitted as soon as the latch
// is set, whatever the network outcome; the returned error and
// Acknowledgement report the remote result.
func (c *Controller) Submit(ctx context.Context) error {
	return c.submit(ctx, TriggerManual)
}

func (c *Controller) expire() {
	c.mu.Lock()
	ctx := c.dispatch
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.submit(ctx, TriggerExpired); err != nil && !errors.Is(err, ErrAlreadySubmitted) {
		c.logger.Record(log.LogEvent{
			Event:     log.EventRequestFailed,
			SessionID: c.sessionID,
			Stage:     "assessment",
			Reason:    "auto_submit",
			Error:     err.Error(),
		})
	}
}

// submit is the single submission routine behind both triggers.
func (c *Controller) submit(ctx context.Context, trigger string) error {
	c.mu.Lock()
	if c.latched {
		c.mu.Unlock()
		return ErrAlreadySubmitted
	}
	if c.state != Timed {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("submit in %s: %w", st, ErrInvalidState)
	}
	c.latched = true

	limit := c.task.TimeLimitSeconds()
	elapsed := limit - c.countdown.Remaining()
	sub := api.NewSubmission(c.task.Type, c.solution, c.clock.Now(), elapsed)
	c.submission = &sub
	c.trigger = trigger
	c.state = Submitted
	c.ack = AckPending
	stop := c.stopRun
	c.mu.Unlock()

	c.countdown.Cancel()
	if stop != nil {
		stop()
	}

	err := c.svc.SubmitAssessment(ctx, c.sessionID, sub, uuid.NewString())

	c.mu.Lock()
	if err != nil {
		c.ack = AckFailed
		c.ackErr = err
	} else {
		c.ack = AckAcknowledged
	}
	c.mu.Unlock()

	ev := log.LogEvent{
		Event:      log.EventAssessmentSubmitted,
		SessionID:  c.sessionID,
		Stage:      "assessment",
		Reason:     trigger,
		ElapsedSec: elapsed,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.logger.Record(ev)
	c.finish()

	if err != nil {
		return fmt.Errorf("submitting assessment: %w", err)
	}
	return nil
}

// Pause stops the countdown without submitting, so leaving the session
// mid-exercise cannot auto-submit later. The stage stays Timed with the
// remaining time frozen. Pause outside Timed is a no-op.
func (c *Controller) Pause() {
	c.mu.Lock()
	if c.state != Timed || c.latched || c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = true
	stop := c.stopRun
	c.mu.Unlock()

	c.countdown.Cancel()
	if stop != nil {
		stop()
	}
	c.logger.Record(log.LogEvent{
		Event:      log.EventAssessmentPaused,
		SessionID:  c.sessionID,
		Stage:      "assessment",
		ElapsedSec: c.countdown.Elapsed(),
	})
}

// Paused reports whether Pause stopped the countdown.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Skip abandons the stage without submitting. confirmed must be true.
func (c *Controller) Skip(confirmed bool) error {
	if !confirmed {
		return ErrSkipNotConfirmed
	}
	c.mu.Lock()
	if c.latched {
		c.mu.Unlock()
		return ErrAlreadySubmitted
	}
	switch c.state {
	case Loading, Introduction, Timed:
	default:
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("skip in %s: %w", st, ErrInvalidState)
	}
	c.latched = true
	from := c.state
	c.state = Abandoned
	stop := c.stopRun
	c.mu.Unlock()

	c.countdown.Cancel()
	if stop != nil {
		stop()
	}
	c.logger.Record(log.LogEvent{
		Event:     log.EventAssessmentSkipped,
		SessionID: c.sessionID,
		Stage:     "assessment",
		Reason:    from.String(),
	})
	c.finish()
	return nil
}

func (c *Controller) finish() {
	c.doneOnce.Do(func() { close(c.done) })
}

// Done is closed once the stage is terminal and any submission has
// returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Task returns the loaded task, or nil.
func (c *Controller) Task() *api.AssessmentTask {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.task == nil {
		return nil
	}
	t := *c.task
	return &t
}

// Solution returns the current solution text.
func (c *Controller) Solution() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.solution
}

// Remaining returns the seconds left on the countdown. Before Begin it is
// the full time limit.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	started := c.state != Loading && c.state != Introduction
	var limit int
	if c.task != nil {
		limit = c.task.TimeLimitSeconds()
	}
	c.mu.Unlock()
	if !started {
		return limit
	}
	return c.countdown.Remaining()
}

// Acknowledgement reports the remote outcome of the submission.
func (c *Controller) Acknowledgement() (AckStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ack, c.ackErr
}

// Outcome returns the stage output.
func (c *Controller) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := Outcome{
		State:   c.state.String(),
		Trigger: c.trigger,
		Ack:     c.ack.String(),
	}
	if c.task != nil {
		t := *c.task
		out.Task = &t
	}
	if c.submission != nil {
		s := *c.submission
		out.Submission = &s
	}
	if c.ackErr != nil {
		out.AckError = c.ackErr.Error()
	}
	return out
}
