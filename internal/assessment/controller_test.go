package assessment

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/clock"
	"github.com/hirepath/hirepath/internal/gateway"
	"github.com/hirepath/hirepath/internal/testutil"
	"github.com/hirepath/hirepath/internal/timer"
)

func newAPI(t *testing.T, fake *testutil.FakeService) *api.Client {
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
	return api.New(gw)
}

// harness wires a controller to a manual tick source and reports every
// applied tick on ticked.
type harness struct {
	c      *Controller
	fake   *testutil.FakeService
	src    *timer.ChanSource
	ticked chan int
}

func newHarness(t *testing.T, fake *testutil.FakeService) *harness {
	t.Helper()
	client := newAPI(t, fake)
	id, err := client.StartSession(context.Background())
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	h := &harness{
		fake:   fake,
		src:    timer.NewChanSource(),
		ticked: make(chan int, 128),
	}
	h.c = New(id, client,
		WithClock(&clock.Fixed{T: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}),
		WithTickSource(func() clock.TickSource { return h.src }),
		WithOnTick(func(remaining int) { h.ticked <- remaining }),
	)
	return h
}

// tick delivers one tick and waits until the countdown applied it.
func (h *harness) tick(t *testing.T) int {
	t.Helper()
	if !h.src.Fire() {
		t.Fatal("tick source stopped")
	}
	select {
	case rem := <-h.ticked:
		return rem
	case <-time.After(2 * time.Second):
		t.Fatal("tick not applied")
		return 0
	}
}

func waitDone(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("stage not done, state %s", c.State())
	}
}

func TestLoadSeedsStarterCode(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	if err := h.c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if h.c.State() != Introduction {
		t.Errorf("state = %s, want introduction", h.c.State())
	}
	if h.c.Solution() != h.fake.Task["starter_code"] {
		t.Errorf("solution = %q, want starter code", h.c.Solution())
	}
	if h.c.Remaining() != 60 {
		t.Errorf("Remaining = %d, want 60", h.c.Remaining())
	}
}

func TestLoadIgnoresStarterCodeForNonCodingTask(t *testing.T) {
	fake := testutil.NewFakeService()
	fake.Task["type"] = api.TaskBusinessCase
	h := newHarness(t, fake)
	if err := h.c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if h.c.Solution() != "" {
		t.Errorf("solution = %q, want empty", h.c.Solution())
	}
}

func TestLoadFailureStaysLoading(t *testing.T) {
	fake := testutil.NewFakeService()
	fake.FailNext(testutil.RouteStartAssessment, http.StatusBadRequest)
	h := newHarness(t, fake)

	err := h.c.Load(context.Background())
	if !errors.Is(err, gateway.ErrClient) {
		t.Fatalf("Load = %v, want ErrClient", err)
	}
	if h.c.State() != Loading || h.c.LoadErrors() != 1 {
		t.Errorf("state = %s, loadErrors = %d", h.c.State(), h.c.LoadErrors())
	}
	if err := h.c.Load(context.Background()); err != nil {
		t.Fatalf("retry Load failed: %v", err)
	}
	if h.c.State() != Introduction {
		t.Errorf("state = %s, want introduction", h.c.State())
	}
}

func TestExpiryAutoSubmits(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	ctx := context.Background()
	if err := h.c.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.c.SetSolution("return nil"); err != nil {
		t.Fatalf("SetSolution failed: %v", err)
	}
	if err := h.c.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	for i := 1; i <= 60; i++ {
		if rem := h.tick(t); rem != 60-i {
			t.Fatalf("tick %d remaining = %d, want %d", i, rem, 60-i)
		}
	}
	waitDone(t, h.c)

	if h.c.State() != Submitted {
		t.Errorf("state = %s, want submitted", h.c.State())
	}
	out := h.c.Outcome()
	if out.Trigger != TriggerExpired || out.Ack != "acknowledged" {
		t.Errorf("outcome = %+v", out)
	}
	if out.Submission == nil || out.Submission.TimeSpent != 60 || out.Submission.Solution != "return nil" {
		t.Errorf("submission = %+v", out.Submission)
	}
	subs := h.fake.Submissions()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if subs[0]["submitted_at"] != "2026-03-01T10:00:00Z" {
		t.Errorf("submitted_at = %v", subs[0]["submitted_at"])
	}
}

func TestPauseStopsAutoSubmit(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	ctx := context.Background()
	if err := h.c.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	h.c.Pause() // before Begin
	if h.c.Paused() {
		t.Fatal("Pause outside timed should be a no-op")
	}
	if err := h.c.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	h.tick(t)
	h.tick(t)

	h.c.Pause()
	if !h.c.Paused() {
		t.Fatal("Paused = false after Pause")
	}
	for i := 0; i < 60; i++ {
		if h.c.countdown.Tick() {
			t.Fatal("countdown expired after Pause")
		}
	}

	if h.c.State() != Timed {
		t.Errorf("state = %s, want timed", h.c.State())
	}
	if rem := h.c.Remaining(); rem != 58 {
		t.Errorf("remaining = %d, want 58", rem)
	}
	select {
	case <-h.c.Done():
		t.Error("stage finished after Pause")
	default:
	}
	if got := len(h.fake.Submissions()); got != 0 {
		t.Errorf("submissions = %d, want 0", got)
	}
}

func TestManualSubmitRecordsElapsed(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	ctx := context.Background()
	if err := h.c.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.c.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		h.tick(t)
	}

	if err := h.c.Submit(ctx); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitDone(t, h.c)

	out := h.c.Outcome()
	if out.Submission.TimeSpent != 10 || out.Trigger != TriggerManual {
		t.Errorf("outcome = %+v, submission = %+v", out, out.Submission)
	}
	if err := h.c.Submit(ctx); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("second Submit = %v, want ErrAlreadySubmitted", err)
	}
	if h.src.Fire() {
		t.Error("tick source still live after submit")
	}
	if n := h.fake.Calls(testutil.RouteSubmitAssessment); n != 1 {
		t.Errorf("submit calls = %d, want 1", n)
	}
}

func TestSubmitAndExpiryRaceDispatchOnce(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	ctx := context.Background()
	if err := h.c.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.c.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	for i := 0; i < 59; i++ {
		h.tick(t)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- h.c.Submit(ctx)
		}()
	}
	h.src.Fire()
	wg.Wait()
	close(errs)
	waitDone(t, h.c)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrAlreadySubmitted) {
			t.Errorf("Submit = %v", err)
		}
	}
	if ok > 1 {
		t.Errorf("%d manual submits succeeded, want at most 1", ok)
	}
	if n := h.fake.Calls(testutil.RouteSubmitAssessment); n != 1 {
		t.Errorf("submit calls = %d, want 1", n)
	}
	if h.c.State() != Submitted {
		t.Errorf("state = %s, want submitted", h.c.State())
	}
}

func TestSubmitFailureStillSubmitted(t *testing.T) {
	fake := testutil.NewFakeService()
	h := newHarness(t, fake)
	ctx := context.Background()
	if err := h.c.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.c.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	fake.FailNext(testutil.RouteSubmitAssessment, 500, 500, 500)

	err := h.c.Submit(ctx)
	if !errors.Is(err, gateway.ErrServer) {
		t.Fatalf("Submit = %v, want ErrServer", err)
	}
	if h.c.State() != Submitted {
		t.Errorf("state = %s, want submitted", h.c.State())
	}
	ack, ackErr := h.c.Acknowledgement()
	if ack != AckFailed || ackErr == nil {
		t.Errorf("Acknowledgement = %s, %v", ack, ackErr)
	}
	if err := h.c.Submit(ctx); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("resubmit = %v, want ErrAlreadySubmitted", err)
	}
	keys := fake.IdempotencyKeys(testutil.RouteSubmitAssessment)
	if len(keys) != 3 || keys[0] != keys[2] {
		t.Errorf("idempotency keys = %v, want one key across retries", keys)
	}
}

func TestSkipRequiresConfirmation(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	if err := h.c.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := h.c.Skip(false); !errors.Is(err, ErrSkipNotConfirmed) {
		t.Fatalf("Skip(false) = %v, want ErrSkipNotConfirmed", err)
	}
	if h.c.State() != Introduction {
		t.Errorf("state = %s, want introduction", h.c.State())
	}

	if err := h.c.Skip(true); err != nil {
		t.Fatalf("Skip(true) failed: %v", err)
	}
	waitDone(t, h.c)
	if h.c.State() != Abandoned {
		t.Errorf("state = %s, want abandoned", h.c.State())
	}
	if err := h.c.Begin(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Begin after skip = %v, want ErrInvalidState", err)
	}
	if n := h.fake.Calls(testutil.RouteSubmitAssessment); n != 0 {
		t.Errorf("submit calls = %d, want 0", n)
	}
}

func TestSkipAfterLoadFailure(t *testing.T) {
	fake := testutil.NewFakeService()
	fake.FailNext(testutil.RouteStartAssessment, http.StatusNotFound)
	h := newHarness(t, fake)
	if err := h.c.Load(context.Background()); err == nil {
		t.Fatal("Load should fail")
	}
	if err := h.c.Skip(true); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	if h.c.Outcome().State != "abandoned" {
		t.Errorf("outcome = %+v", h.c.Outcome())
	}
}

func TestSkipAfterSubmitRejected(t *testing.T) {
	h := newHarness(t, testutil.NewFakeService())
	ctx := context.Background()
	if err := h.c.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.c.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := h.c.Submit(ctx); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := h.c.Skip(true); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("Skip = %v, want ErrAlreadySubmitted", err)
	}
	if err := h.c.SetSolution("late"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetSolution = %v, want ErrInvalidState", err)
	}
}

func TestZeroTimeLimitSubmitsOnBegin(t *testing.T) {
	fake := testutil.NewFakeService()
	fake.Task["time_limit"] = 0
	h := newHarness(t, fake)
	ctx := context.Background()
	if err := h.c.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.c.Begin(ctx); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	waitDone(t, h.c)
	out := h.c.Outcome()
	if out.Trigger != TriggerExpired || out.Submission.TimeSpent != 0 {
		t.Errorf("outcome = %+v", out)
	}
}
