package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/assessment"
	"github.com/hirepath/hirepath/internal/clock"
	"github.com/hirepath/hirepath/internal/config"
	"github.com/hirepath/hirepath/internal/gateway"
	"github.com/hirepath/hirepath/internal/intake"
	"github.com/hirepath/hirepath/internal/interview"
	"github.com/hirepath/hirepath/internal/log"
	"github.com/hirepath/hirepath/internal/report"
	"github.com/hirepath/hirepath/internal/testutil"
	"github.com/hirepath/hirepath/internal/timer"
)

// scriptedDriver answers every stage without a human.
type scriptedDriver struct {
	cvPath        string
	skip          bool
	failInterview error
	stages        []string
	report        *api.Report
}

func (d *scriptedDriver) Intake(ctx context.Context, c *intake.Controller) (intake.CVSummary, error) {
	d.stages = append(d.stages, "intake")
	return c.Upload(ctx, d.cvPath)
}

func (d *scriptedDriver) Interview(ctx context.Context, c *interview.Controller) error {
	d.stages = append(d.stages, "interview")
	if d.failInterview != nil {
		return d.failInterview
	}
	if err := c.LoadNext(ctx); err != nil {
		return err
	}
	for c.State() != interview.Complete {
		q, _ := c.Question()
		if err := c.SetAnswer(fmt.Sprintf("answer %d", q.Number)); err != nil {
			return err
		}
		if err := c.Submit(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (d *scriptedDriver) Assessment(ctx context.Context, c *assessment.Controller) error {
	d.stages = append(d.stages, "assessment")
	if d.skip {
		return c.Skip(true)
	}
	if err := c.Begin(ctx); err != nil {
		return err
	}
	if err := c.SetSolution("func twoSum() {}"); err != nil {
		return err
	}
	return c.Submit(ctx)
}

func (d *scriptedDriver) Report(_ context.Context, rep *api.Report) error {
	d.stages = append(d.stages, "report")
	d.report = rep
	return nil
}

type harness struct {
	fake   *testutil.FakeService
	driver *scriptedDriver
	store  *Store
	logger *log.Logger
	dir    string
	orch   *Orchestrator
}

func newHarness(t *testing.T, fake *testutil.FakeService) *harness {
	t.Helper()
	srv := fake.Start(t)
	gw, err := gateway.New(srv.URL, gateway.Options{
		RateLimit: 1000,
		AudioDir:  t.TempDir(),
		Sleep:     func(context.Context, time.Duration) error { return nil },
	})
	if err != nil {
		t.Fatalf("gateway.New failed: %v", err)
	}

	dir := testutil.TempWorkspace(t, map[string]string{"cv.txt": testutil.SampleCV()})
	logger, err := log.NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	store, err := NewStore(filepath.Join(config.StateDir(dir), "sessions.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		fake:   fake,
		driver: &scriptedDriver{cvPath: filepath.Join(dir, "cv.txt")},
		store:  store,
		logger: logger,
		dir:    dir,
	}
	h.orch = NewOrchestrator(Deps{
		Service: api.New(gw),
		Driver:  h.driver,
		Store:   store,
		Logger:  logger,
		Dir:     dir,
		AssessmentOptions: []assessment.Option{
			assessment.WithTickSource(func() clock.TickSource { return timer.NewChanSource() }),
		},
	})
	return h
}

func (h *harness) events(t *testing.T, name string) []log.LogEvent {
	t.Helper()
	all, err := h.logger.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	var out []log.LogEvent
	for _, e := range all {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func TestRunWalksAllStages(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	ctx := context.Background()

	sess, err := h.orch.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.orch.Run(ctx, sess); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"intake", "interview", "assessment", "report"}
	if fmt.Sprint(h.driver.stages) != fmt.Sprint(want) {
		t.Errorf("stages = %v, want %v", h.driver.stages, want)
	}
	if sess.Stage != StageComplete {
		t.Errorf("Stage = %s, want complete", sess.Stage)
	}
	if sess.CV == nil || sess.CV.QuestionsGenerated != 10 {
		t.Errorf("CV = %+v", sess.CV)
	}
	if sess.Interview == nil || len(sess.Interview.Answers) != 10 {
		t.Fatalf("Interview = %+v", sess.Interview)
	}
	if got := h.fake.Answers(sess.ID); len(got) != 10 || got[0] != "answer 1" {
		t.Errorf("service answers = %v", got)
	}
	if sess.Assessment == nil || sess.Assessment.State != "submitted" || sess.Assessment.Ack != "acknowledged" {
		t.Errorf("Assessment = %+v", sess.Assessment)
	}
	if h.driver.report == nil || h.driver.report.Recommendation.Decision != "Hire" {
		t.Errorf("report = %+v", h.driver.report)
	}
	if _, err := report.Read(report.SessionDir(h.dir, sess.ID)); err != nil {
		t.Errorf("report not written: %v", err)
	}

	cached, err := h.store.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cached.Stage != StageComplete || len(cached.Interview.Answers) != 10 {
		t.Errorf("cached = stage %s, %d answers", cached.Stage, len(cached.Interview.Answers))
	}
	if n := len(h.events(t, log.EventStageCompleted)); n != 4 {
		t.Errorf("stage_completed events = %d, want 4", n)
	}
}

func TestSkippedAssessmentStillReachesReport(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	h.driver.skip = true
	ctx := context.Background()

	sess, err := h.orch.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.orch.Run(ctx, sess); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if sess.Assessment.State != "abandoned" {
		t.Errorf("assessment state = %s, want abandoned", sess.Assessment.State)
	}
	if h.fake.Calls(testutil.RouteSubmitAssessment) != 0 {
		t.Error("skipped assessment was submitted")
	}
	if h.driver.report == nil {
		t.Error("report stage not reached")
	}
}

func TestAssessmentLoadFailuresAbandon(t *testing.T) {
	fake := testutil.NewFakeService()
	fake.FailNext(testutil.RouteStartAssessment, http.StatusBadRequest, http.StatusBadRequest, http.StatusBadRequest)
	h := newHarness(t, fake)
	ctx := context.Background()

	sess, err := h.orch.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.orch.Run(ctx, sess); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n := fake.Calls(testutil.RouteStartAssessment); n != 3 {
		t.Errorf("start-assessment calls = %d, want 3", n)
	}
	if sess.Assessment.State != "abandoned" || sess.Assessment.LoadError == "" {
		t.Errorf("Assessment = %+v", sess.Assessment)
	}
	for _, s := range h.driver.stages {
		if s == "assessment" {
			t.Error("driver shown an assessment that never loaded")
		}
	}
	if h.driver.report == nil {
		t.Error("report stage not reached")
	}
}

func TestStageErrorIsResumable(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	h.driver.failInterview = errors.New("candidate left")
	ctx := context.Background()

	sess, err := h.orch.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := h.orch.Run(ctx, sess); err == nil {
		t.Fatal("Run should fail at the interview")
	}
	if sess.Stage != StageInterview {
		t.Errorf("Stage = %s, want interview", sess.Stage)
	}

	h.driver.failInterview = nil
	h.driver.stages = nil
	resumed, err := h.orch.Resume(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if resumed.Stage != StageInterview || resumed.CV == nil {
		t.Errorf("resumed = stage %s, cv %+v", resumed.Stage, resumed.CV)
	}
	if err := h.orch.Run(ctx, resumed); err != nil {
		t.Fatalf("resumed Run failed: %v", err)
	}
	if h.driver.stages[0] != "interview" {
		t.Errorf("resumed stages = %v, want interview first", h.driver.stages)
	}
	if n := len(h.events(t, log.EventSessionResumed)); n != 1 {
		t.Errorf("session_resumed events = %d, want 1", n)
	}
}

func TestResumeUsesRemoteProgress(t *testing.T) {
	fake := testutil.NewFakeService()
	fake.AddSession("remote1")
	h := newHarness(t, fake)
	ctx := context.Background()

	client := h.orch.deps.Service
	if _, err := client.UploadCV(ctx, "remote1", "cv.txt", []byte("cv")); err != nil {
		t.Fatalf("UploadCV failed: %v", err)
	}

	sess, err := h.orch.Resume(ctx, "remote1")
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if sess.Stage != StageInterview {
		t.Errorf("Stage = %s, want interview", sess.Stage)
	}
}

func TestResumeUnknownSession(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	_, err := h.orch.Resume(context.Background(), "ghost")
	if !errors.Is(err, gateway.ErrSessionNotFound) {
		t.Errorf("Resume = %v, want ErrSessionNotFound", err)
	}
}

func TestStageFromStatus(t *testing.T) {
	tests := []struct {
		name   string
		status api.SessionStatus
		want   Stage
	}{
		{"new", api.SessionStatus{Status: "initialized"}, StageIntake},
		{"cv", api.SessionStatus{Status: "cv_uploaded", Progress: api.Progress{CVUploaded: true}}, StageInterview},
		{"interviewed", api.SessionStatus{Status: "interview_complete", Progress: api.Progress{CVUploaded: true}}, StageAssessment},
		{"assessing", api.SessionStatus{Status: "assessment_active"}, StageAssessment},
		{"assessed", api.SessionStatus{Progress: api.Progress{AssessmentComplete: true}}, StageReport},
		{"reported", api.SessionStatus{Progress: api.Progress{ReportGenerated: true}}, StageReport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StageFromStatus(&tt.status); got != tt.want {
				t.Errorf("StageFromStatus = %s, want %s", got, tt.want)
			}
		})
	}
}
