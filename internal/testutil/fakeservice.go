package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Route names accepted by FailNext and Calls.
const (
	RoutePing              = "ping"
	RouteStart             = "start"
	RouteUploadCV          = "upload-cv"
	RouteQuestion          = "question"
	RouteAnswer            = "answer"
	RouteCompleteInterview = "complete-interview"
	RouteSpeechToText      = "speech-to-text"
	RouteTextToSpeech      = "text-to-speech"
	RouteStartAssessment   = "start-assessment"
	RouteSubmitAssessment  = "submit-assessment"
	RouteReport            = "report"
	RouteStatus            = "status"
)

// FakeService is an in-memory evaluation service for tests. It follows the
// real service's progression rules: answers advance the question index and
// the interview completes when questions run out or MaxQuestions is reached.
type FakeService struct {
	mu sync.Mutex

	// SessionID is returned by start; defaults to "abc123".
	SessionID    string
	Questions    []string
	MaxQuestions int
	// TotalQuestions overrides the reported total when non-zero.
	TotalQuestions int
	// BlankQuestion makes the question route return an empty object.
	BlankQuestion bool
	CVSummary     string
	UploadStatus  string
	Transcript    string
	Task          map[string]any
	Report        map[string]any

	sessions    map[string]*fakeSession
	calls       map[string]int
	failures    map[string][]int
	submissions []map[string]any
	idemKeys    map[string][]string
}

type fakeSession struct {
	status      string
	cvUploaded  bool
	index       int
	answers     []string
	assessed    bool
	reportReady bool
}

// NewFakeService returns a service with ten questions and a coding task.
func NewFakeService() *FakeService {
	qs := make([]string, 10)
	for i := range qs {
		qs[i] = fmt.Sprintf("Question %d: tell me about your experience.", i+1)
	}
	return &FakeService{
		SessionID:    "abc123",
		Questions:    qs,
		MaxQuestions: 10,
		CVSummary:    "Backend engineer with five years of Go.",
		UploadStatus: "success",
		Transcript:   "five years of backend work",
		Task: map[string]any{
			"type":         "coding",
			"title":        "Two Sum",
			"description":  "Return indices of two numbers adding to target.",
			"requirements": []string{"O(n) time", "Handle duplicates"},
			"time_limit":   1,
			"language":     "go",
			"starter_code": "func twoSum(nums []int, target int) []int {\n}\n",
		},
		Report:   SampleReport("abc123"),
		sessions: make(map[string]*fakeSession),
		calls:    make(map[string]int),
		failures: make(map[string][]int),
		idemKeys: make(map[string][]string),
	}
}

// Start serves the fake on an httptest server closed at test cleanup.
func (f *FakeService) Start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(f.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// Handler returns the chi router for the fake.
func (f *FakeService) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", f.wrap(RoutePing, f.handlePing))
	r.Post("/session/start", f.wrap(RouteStart, f.handleStart))
	r.Route("/session/{id}", func(r chi.Router) {
		r.Post("/upload-cv", f.wrap(RouteUploadCV, f.withSession(f.handleUploadCV)))
		r.Get("/question", f.wrap(RouteQuestion, f.withSession(f.handleQuestion)))
		r.Post("/answer", f.wrap(RouteAnswer, f.withSession(f.handleAnswer)))
		r.Post("/complete-interview", f.wrap(RouteCompleteInterview, f.withSession(f.handleCompleteInterview)))
		r.Post("/speech-to-text", f.wrap(RouteSpeechToText, f.withSession(f.handleSpeechToText)))
		r.Get("/text-to-speech", f.wrap(RouteTextToSpeech, f.withSession(f.handleTextToSpeech)))
		r.Post("/start-assessment", f.wrap(RouteStartAssessment, f.withSession(f.handleStartAssessment)))
		r.Post("/submit-assessment", f.wrap(RouteSubmitAssessment, f.withSession(f.handleSubmitAssessment)))
		r.Get("/report", f.wrap(RouteReport, f.withSession(f.handleReport)))
		r.Get("/status", f.wrap(RouteStatus, f.withSession(f.handleStatus)))
	})
	return r
}

// FailNext makes the next len(statuses) calls to route answer with those
// HTTP statuses before normal handling resumes.
func (f *FakeService) FailNext(route string, statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[route] = append(f.failures[route], statuses...)
}

// Calls returns how many requests route has received, failures included.
func (f *FakeService) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// Answers returns the answers recorded for a session.
func (f *FakeService) Answers(sessionID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]string(nil), s.answers...)
}

// Submissions returns every accepted assessment submission body.
func (f *FakeService) Submissions() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.submissions...)
}

// IdempotencyKeys returns the Idempotency-Key headers seen on route.
func (f *FakeService) IdempotencyKeys(route string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.idemKeys[route]...)
}

// AddSession registers a session without a start call.
func (f *FakeService) AddSession(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[id] = &fakeSession{status: "initialized"}
}

// --- Handlers ---

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *fakeSession)

// wrap counts the call and applies any queued failure.
func (f *FakeService) wrap(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls[route]++
		f.idemKeys[route] = append(f.idemKeys[route], r.Header.Get("Idempotency-Key"))
		var status int
		if q := f.failures[route]; len(q) > 0 {
			status, f.failures[route] = q[0], q[1:]
		}
		f.mu.Unlock()

		if status != 0 {
			writeStatus(w, status, map[string]any{"detail": http.StatusText(status)})
			return
		}
		h(w, r)
	}
}

func (f *FakeService) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		f.mu.Lock()
		s, ok := f.sessions[id]
		f.mu.Unlock()
		if !ok {
			writeStatus(w, http.StatusNotFound, map[string]any{"detail": "Session not found"})
			return
		}
		h(w, r, s)
	}
}

func (f *FakeService) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"message": "Evaluation API", "version": "1.0.0"})
}

func (f *FakeService) handleStart(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	id := f.SessionID
	if _, exists := f.sessions[id]; exists || id == "" {
		id = fmt.Sprintf("session-%d", len(f.sessions)+1)
	}
	f.sessions[id] = &fakeSession{status: "initialized"}
	f.mu.Unlock()
	writeJSON(w, map[string]any{"session_id": id, "status": "initialized"})
}

func (f *FakeService) handleUploadCV(w http.ResponseWriter, r *http.Request, s *fakeSession) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeStatus(w, http.StatusUnprocessableEntity, map[string]any{"detail": "file is required"})
		return
	}
	defer file.Close()
	io.Copy(io.Discard, file)

	f.mu.Lock()
	defer f.mu.Unlock()
	s.cvUploaded = true
	s.status = "cv_uploaded"
	writeJSON(w, map[string]any{
		"status":              f.UploadStatus,
		"cv_summary":          f.CVSummary,
		"questions_generated": len(f.Questions),
	})
}

func (f *FakeService) handleQuestion(w http.ResponseWriter, r *http.Request, s *fakeSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BlankQuestion {
		writeJSON(w, map[string]any{})
		return
	}
	if s.status == "interview_complete" || s.index >= len(f.Questions) || len(s.answers) >= f.MaxQuestions {
		s.status = "interview_complete"
		writeJSON(w, map[string]any{"status": "interview_complete"})
		return
	}
	total := len(f.Questions)
	if f.TotalQuestions != 0 {
		total = f.TotalQuestions
	}
	writeJSON(w, map[string]any{
		"question":           f.Questions[s.index],
		"question_number":    s.index + 1,
		"total_questions":    total,
		"answered_questions": len(s.answers),
		"max_questions":      f.MaxQuestions,
	})
}

func (f *FakeService) handleAnswer(w http.ResponseWriter, r *http.Request, s *fakeSession) {
	var body struct {
		Answer    string `json:"answer"`
		Timestamp string `json:"timestamp"`
	}
	if !readJSON(w, r, &body) {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	s.answers = append(s.answers, body.Answer)
	s.index++
	if s.index >= len(f.Questions) || len(s.answers) >= f.MaxQuestions {
		s.status = "interview_complete"
	}
	complete := s.status == "interview_complete"
	writeJSON(w, map[string]any{
		"status":                  "answer_recorded",
		"next_question_available": s.index < len(f.Questions) && !complete,
		"interview_complete":      complete,
		"questions_answered":      len(s.answers),
		"total_questions":         len(f.Questions),
	})
}

func (f *FakeService) handleCompleteInterview(w http.ResponseWriter, r *http.Request, s *fakeSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.status = "interview_complete"
	writeJSON(w, map[string]any{"status": "interview_completed_manually", "questions_answered": len(s.answers)})
}

func (f *FakeService) handleSpeechToText(w http.ResponseWriter, r *http.Request, s *fakeSession) {
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeStatus(w, http.StatusUnprocessableEntity, map[string]any{"detail": "audio is required"})
		return
	}
	defer file.Close()
	io.Copy(io.Discard, file)

	f.mu.Lock()
	text := f.Transcript
	f.mu.Unlock()
	writeJSON(w, map[string]any{"text": text})
}

func (f *FakeService) handleTextToSpeech(w http.ResponseWriter, r *http.Request, s *fakeSession) {
	if r.URL.Query().Get("text") == "" {
		writeStatus(w, http.StatusUnprocessableEntity, map[string]any{"detail": "text is required"})
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Write([]byte("ID3" + r.URL.Query().Get("text")))
}

func (f *FakeService) handleStartAssessment(w http.ResponseWriter, r *http.Request, s *fakeSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.status = "assessment_active"
	writeJSON(w, map[string]any{"assessment": f.Task})
}

func (f *FakeService) handleSubmitAssessment(w http.ResponseWriter, r *http.Request, s *fakeSession) {
	var body map[string]any
	if !readJSON(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, body)
	s.assessed = true
	s.status = "assessment_complete"
	writeJSON(w, map[string]any{"status": "assessment_submitted"})
}

func (f *FakeService) handleReport(w http.ResponseWriter, r *http.Request, s *fakeSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.reportReady = true
	s.status = "completed"
	writeJSON(w, f.Report)
}

func (f *FakeService) handleStatus(w http.ResponseWriter, r *http.Request, s *fakeSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, map[string]any{
		"session_id": chi.URLParam(r, "id"),
		"status":     s.status,
		"progress": map[string]any{
			"cv_uploaded":         s.cvUploaded,
			"questions_answered":  len(s.answers),
			"total_questions":     len(f.Questions),
			"assessment_complete": s.assessed,
			"report_generated":    s.reportReady,
		},
	})
}

// --- Helpers ---

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeStatus(w, http.StatusUnprocessableEntity, map[string]any{"detail": fmt.Sprintf("invalid JSON: %v", err)})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	writeStatus(w, http.StatusOK, v)
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encoding response: %v", err), http.StatusInternalServerError)
	}
}
