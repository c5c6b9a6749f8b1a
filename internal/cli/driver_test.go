package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/assessment"
	"github.com/hirepath/hirepath/internal/clock"
	"github.com/hirepath/hirepath/internal/gateway"
	"github.com/hirepath/hirepath/internal/interview"
	"github.com/hirepath/hirepath/internal/log"
	"github.com/hirepath/hirepath/internal/report"
	"github.com/hirepath/hirepath/internal/session"
	"github.com/hirepath/hirepath/internal/testutil"
	"github.com/hirepath/hirepath/internal/timer"
)

func init() {
	color.NoColor = true
}

type consoleRun struct {
	fake *testutil.FakeService
	dir  string
	out  *bytes.Buffer
	orch *session.Orchestrator
}

func newConsoleRun(t *testing.T, input string) *consoleRun {
	t.Helper()
	fake := testutil.NewFakeService()
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

	out := &bytes.Buffer{}
	driver := &consoleDriver{
		in:        newLineReader(strings.NewReader(input)),
		out:       out,
		cvPath:    filepath.Join(dir, "cv.txt"),
		reportDir: dir,
	}
	orch := session.NewOrchestrator(session.Deps{
		Service: api.New(gw),
		Driver:  driver,
		Logger:  logger,
		Dir:     dir,
		AssessmentOptions: []assessment.Option{
			assessment.WithTickSource(func() clock.TickSource { return timer.NewChanSource() }),
		},
	})
	return &consoleRun{fake: fake, dir: dir, out: out, orch: orch}
}

func TestConsoleDriverCompletesSession(t *testing.T) {
	var in strings.Builder
	in.WriteString("/done\n\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&in, "answer %d\n", i)
	}
	in.WriteString("\nfunc twoSum() {}\n/submit\n")

	r := newConsoleRun(t, in.String())
	ctx := context.Background()
	sess, err := r.orch.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := r.orch.Run(ctx, sess); err != nil {
		t.Fatalf("Run failed: %v\n%s", err, r.out)
	}

	if got := len(r.fake.Answers(sess.ID)); got != 10 {
		t.Errorf("answers = %d, want 10", got)
	}
	subs := r.fake.Submissions()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if subs[0]["solution"] != "func twoSum() {}" {
		t.Errorf("solution = %v", subs[0]["solution"])
	}

	out := r.out.String()
	for _, want := range []string{
		"Question 1 of 10",
		"can be finished from question 8",
		"Interview complete: 10 answers recorded.",
		"Assessment submitted.",
		"Candidate Evaluation Report",
		report.SessionDir(r.dir, sess.ID),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestConsoleDriverInputClosedPausesSession(t *testing.T) {
	r := newConsoleRun(t, "answer 1\n")
	ctx := context.Background()
	sess, err := r.orch.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err = r.orch.Run(ctx, sess)
	if !errors.Is(err, errQuit) {
		t.Fatalf("Run = %v, want errQuit", err)
	}
	if sess.Stage != session.StageInterview {
		t.Errorf("Stage = %s, want interview", sess.Stage)
	}
	if got := len(r.fake.Answers(sess.ID)); got != 1 {
		t.Errorf("answers = %d, want 1", got)
	}
}

func TestConsoleDriverSkipsAssessment(t *testing.T) {
	var in strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&in, "answer %d\n", i)
	}
	in.WriteString("/skip\nn\n/skip\ny\n")

	r := newConsoleRun(t, in.String())
	ctx := context.Background()
	sess, err := r.orch.Start(ctx)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := r.orch.Run(ctx, sess); err != nil {
		t.Fatalf("Run failed: %v\n%s", err, r.out)
	}

	if len(r.fake.Submissions()) != 0 {
		t.Errorf("submissions = %d, want 0", len(r.fake.Submissions()))
	}
	if sess.Assessment == nil || sess.Assessment.State != assessment.Abandoned.String() {
		t.Errorf("Assessment = %+v, want abandoned", sess.Assessment)
	}
	if !strings.Contains(r.out.String(), "Assessment skipped.") {
		t.Error("output missing skip confirmation")
	}
}

// questionOutage fails CurrentQuestion on the listed call numbers.
type questionOutage struct {
	*api.Client
	calls int
	fail  map[int]bool
}

func (q *questionOutage) CurrentQuestion(ctx context.Context, id string) (*api.QuestionResponse, error) {
	q.calls++
	if q.fail[q.calls] {
		return nil, fmt.Errorf("question service: %w", gateway.ErrServer)
	}
	return q.Client.CurrentQuestion(ctx, id)
}

func TestConsoleDriverRetriesNextQuestionWithoutResending(t *testing.T) {
	fake := testutil.NewFakeService()
	fake.AddSession("s1")
	srv := fake.Start(t)
	gw, err := gateway.New(srv.URL, gateway.Options{
		RateLimit: 1000,
		AudioDir:  t.TempDir(),
		Sleep:     func(context.Context, time.Duration) error { return nil },
	})
	if err != nil {
		t.Fatalf("gateway.New failed: %v", err)
	}
	svc := &questionOutage{Client: api.New(gw), fail: map[int]bool{2: true}}
	c := interview.New("s1", svc)

	out := &bytes.Buffer{}
	d := &consoleDriver{in: newLineReader(strings.NewReader("answer 1\n\n/quit\n")), out: out}
	if err := d.Interview(context.Background(), c); !errors.Is(err, errQuit) {
		t.Fatalf("Interview = %v, want errQuit", err)
	}

	if got := fake.Answers("s1"); len(got) != 1 || got[0] != "answer 1" {
		t.Errorf("service answers = %v, want [answer 1]", got)
	}
	text := out.String()
	if strings.Contains(text, "Type it again") {
		t.Error("driver asked for the accepted answer again")
	}
	for _, want := range []string{"Your answer was saved", "Question 2 of 10"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q\n%s", want, text)
		}
	}
}
