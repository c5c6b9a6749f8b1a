package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/assessment"
	"github.com/hirepath/hirepath/internal/clock"
	"github.com/hirepath/hirepath/internal/config"
	"github.com/hirepath/hirepath/internal/intake"
	"github.com/hirepath/hirepath/internal/interview"
	"github.com/hirepath/hirepath/internal/log"
	"github.com/hirepath/hirepath/internal/report"
)

// Service is every evaluation API call the stages make.
type Service interface {
	StartSession(ctx context.Context) (string, error)
	Status(ctx context.Context, sessionID string) (*api.SessionStatus, error)
	intake.Service
	interview.Service
	assessment.Service
	report.Service
}

// Driver presents each stage to the candidate. Every method returns once
// its controller has reached a terminal state, or with an error that
// leaves the session resumable at that stage.
type Driver interface {
	Intake(ctx context.Context, c *intake.Controller) (intake.CVSummary, error)
	Interview(ctx context.Context, c *interview.Controller) error
	Assessment(ctx context.Context, c *assessment.Controller) error
	Report(ctx context.Context, rep *api.Report) error
}

// Deps are the orchestrator's collaborators. Store, Logger, Prompter and
// Recorder may be nil.
type Deps struct {
	Service  Service
	Driver   Driver
	Store    *Store
	Logger   *log.Logger
	Config   *config.Config
	Dir      string
	Prompter interview.Prompter
	Recorder interview.Recorder
	Clock    clock.Clock

	// AssessmentOptions are appended to the assessment controller's options.
	AssessmentOptions []assessment.Option
}

// Orchestrator walks a session through intake, interview, assessment and
// report. It holds no stage logic of its own.
type Orchestrator struct {
	deps Deps
}

// NewOrchestrator creates an orchestrator. A nil Config uses defaults.
func NewOrchestrator(deps Deps) *Orchestrator {
	if deps.Config == nil {
		deps.Config = config.DefaultConfig()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	return &Orchestrator{deps: deps}
}

// Start opens a new remote session.
func (o *Orchestrator) Start(ctx context.Context) (*Session, error) {
	id, err := o.deps.Service.StartSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	now := o.deps.Clock.Now().UTC()
	sess := &Session{ID: id, Stage: StageIntake, CreatedAt: now, UpdatedAt: now}
	o.deps.Logger.Record(log.LogEvent{Event: log.EventSessionStarted, SessionID: id})
	o.save(sess)
	return sess, nil
}

// Resume rebuilds a session from the local cache and the service's status.
// The session resumes at the later of the cached stage boundary and the
// stage implied by the service's progress. An unknown remote session is
// an error even when it is cached.
func (o *Orchestrator) Resume(ctx context.Context, id string) (*Session, error) {
	status, err := o.deps.Service.Status(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("checking session %s: %w", id, err)
	}

	sess := &Session{ID: id, Stage: StageIntake}
	if o.deps.Store != nil {
		cached, err := o.deps.Store.Load(id)
		switch {
		case err == nil:
			sess = cached
		case !errors.Is(err, ErrNotFound):
			o.deps.Logger.Record(log.LogEvent{
				Event:     log.EventCacheWriteFailed,
				SessionID: id,
				Reason:    "load",
				Error:     err.Error(),
			})
		}
	}

	remote := StageFromStatus(status)
	if remote.After(sess.Stage) {
		sess.Stage = remote
	}
	o.deps.Logger.Record(log.LogEvent{
		Event:     log.EventSessionResumed,
		SessionID: id,
		Stage:     string(sess.Stage),
		Reason:    status.Status,
		Answers:   status.Progress.QuestionsAnswered,
	})
	return sess, nil
}

// StageFromStatus maps the service's progress to the next stage to run.
func StageFromStatus(st *api.SessionStatus) Stage {
	p := st.Progress
	switch {
	case p.ReportGenerated, p.AssessmentComplete:
		return StageReport
	case st.Status == api.StatusInterviewComplete, st.Status == "assessment_active":
		return StageAssessment
	case p.CVUploaded:
		return StageInterview
	default:
		return StageIntake
	}
}

// Run drives sess from its current stage to completion. A stage error
// stops the walk; the session stays at that stage and can be resumed.
func (o *Orchestrator) Run(ctx context.Context, sess *Session) error {
	for sess.Stage != StageComplete {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch sess.Stage {
		case StageIntake:
			err = o.runIntake(ctx, sess)
		case StageInterview:
			err = o.runInterview(ctx, sess)
		case StageAssessment:
			err = o.runAssessment(ctx, sess)
		case StageReport:
			err = o.runReport(ctx, sess)
		default:
			err = fmt.Errorf("unknown stage %q", sess.Stage)
		}
		if err != nil {
			return fmt.Errorf("%s stage: %w", sess.Stage, err)
		}

		done := sess.Stage
		sess.Stage = sess.Stage.Next()
		sess.UpdatedAt = o.deps.Clock.Now().UTC()
		o.deps.Logger.Record(log.LogEvent{
			Event:     log.EventStageCompleted,
			SessionID: sess.ID,
			Stage:     string(done),
		})
		o.save(sess)
	}
	return nil
}

func (o *Orchestrator) runIntake(ctx context.Context, sess *Session) error {
	c := intake.New(sess.ID, o.deps.Service, o.deps.Config.MaxCVBytes(), o.deps.Logger)
	sum, err := o.deps.Driver.Intake(ctx, c)
	if err != nil {
		return err
	}
	sess.CV = &sum
	return nil
}

func (o *Orchestrator) runInterview(ctx context.Context, sess *Session) error {
	opts := []interview.Option{
		interview.WithLogger(o.deps.Logger),
		interview.WithClock(o.deps.Clock),
		interview.WithForceCompleteFloor(o.deps.Config.Interview.ForceCompleteFloor),
	}
	if o.deps.Prompter != nil {
		opts = append(opts, interview.WithPrompter(o.deps.Prompter))
	}
	if o.deps.Recorder != nil {
		opts = append(opts, interview.WithRecorder(o.deps.Recorder))
	}
	if sess.Interview != nil {
		opts = append(opts, interview.WithAnswers(sess.Interview.Answers))
	}

	c := interview.New(sess.ID, o.deps.Service, opts...)
	if err := o.deps.Driver.Interview(ctx, c); err != nil {
		return err
	}
	if c.State() != interview.Complete {
		return fmt.Errorf("interview ended in %s", c.State())
	}
	out := c.Outcome()
	sess.Interview = &out
	return nil
}

// runAssessment loads the task, retrying up to the configured number of
// attempts. When every load fails the stage is abandoned and the session
// moves on to the report.
func (o *Orchestrator) runAssessment(ctx context.Context, sess *Session) error {
	opts := append([]assessment.Option{
		assessment.WithLogger(o.deps.Logger),
		assessment.WithClock(o.deps.Clock),
	}, o.deps.AssessmentOptions...)
	c := assessment.New(sess.ID, o.deps.Service, opts...)

	attempts := o.deps.Config.Assessment.MaxLoadAttempts
	if attempts < 1 {
		attempts = 1
	}
	var loadErr error
	for i := 0; i < attempts; i++ {
		if loadErr = c.Load(ctx); loadErr == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if loadErr != nil {
		if err := c.Skip(true); err != nil {
			return err
		}
	} else if err := o.deps.Driver.Assessment(ctx, c); err != nil && !c.State().Terminal() {
		return err
	}

	if !c.State().Terminal() {
		return fmt.Errorf("assessment ended in %s", c.State())
	}
	<-c.Done()
	out := c.Outcome()
	if loadErr != nil {
		out.LoadError = loadErr.Error()
	}
	sess.Assessment = &out
	return nil
}

func (o *Orchestrator) runReport(ctx context.Context, sess *Session) error {
	rep, err := report.Generate(ctx, o.deps.Service, sess.ID, o.deps.Dir, o.deps.Logger)
	if rep == nil {
		return err
	}
	if err != nil {
		o.deps.Logger.Record(log.LogEvent{
			Event:     log.EventCacheWriteFailed,
			SessionID: sess.ID,
			Stage:     "report",
			Error:     err.Error(),
		})
	}
	sess.Report = rep
	return o.deps.Driver.Report(ctx, rep)
}

// save caches sess. Failures are logged and otherwise ignored.
func (o *Orchestrator) save(sess *Session) {
	if o.deps.Store == nil {
		return
	}
	if err := o.deps.Store.Save(sess); err != nil {
		o.deps.Logger.Record(log.LogEvent{
			Event:     log.EventCacheWriteFailed,
			SessionID: sess.ID,
			Stage:     string(sess.Stage),
			Error:     err.Error(),
		})
	}
}
