package api

import "time"

// Task types returned by start-assessment.
const (
	TaskCoding       = "coding"
	TaskBusinessCase = "business_case"
	TaskAnalytical   = "analytical"
)

// StatusInterviewComplete is the question-endpoint status that ends the
// interview.
const StatusInterviewComplete = "interview_complete"

// CVUploadResult is the upload-cv success payload.
type CVUploadResult struct {
	Status             string `json:"status"`
	CVSummary          string `json:"cv_summary"`
	QuestionsGenerated int    `json:"questions_generated"`
}

// QuestionResponse is either a question or a completion flag.
type QuestionResponse struct {
	Status            string `json:"status,omitempty"`
	Question          string `json:"question,omitempty"`
	QuestionNumber    int    `json:"question_number,omitempty"`
	TotalQuestions    int    `json:"total_questions,omitempty"`
	AnsweredQuestions int    `json:"answered_questions,omitempty"`
	MaxQuestions      int    `json:"max_questions,omitempty"`
}

// Complete reports whether the service declared the interview finished.
func (q *QuestionResponse) Complete() bool {
	return q.Status == StatusInterviewComplete
}

// HasQuestion reports whether a prompt was returned.
func (q *QuestionResponse) HasQuestion() bool {
	return q.Question != ""
}

// AnswerResult is the answer-endpoint payload.
type AnswerResult struct {
	Status                string `json:"status"`
	NextQuestionAvailable bool   `json:"next_question_available"`
	InterviewComplete     bool   `json:"interview_complete"`
	QuestionsAnswered     int    `json:"questions_answered"`
	TotalQuestions        int    `json:"total_questions"`
}

// Scenario frames business and analytical tasks.
type Scenario struct {
	Context        string   `json:"context"`
	Problem        string   `json:"problem"`
	DataPoints     []string `json:"data_points,omitempty"`
	CurrentProcess []string `json:"current_process,omitempty"`
}

// AssessmentTask is one timed exercise. TimeLimit is in minutes.
type AssessmentTask struct {
	Type               string    `json:"type"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Requirements       []string  `json:"requirements"`
	Scenario           *Scenario `json:"scenario,omitempty"`
	ExampleInput       string    `json:"example_input,omitempty"`
	ExampleOutput      string    `json:"example_output,omitempty"`
	EvaluationCriteria []string  `json:"evaluation_criteria,omitempty"`
	TimeLimit          int       `json:"time_limit"`
	Language           string    `json:"language,omitempty"`
	StarterCode        string    `json:"starter_code,omitempty"`
	Format             string    `json:"format,omitempty"`
}

// TimeLimitSeconds converts the minute limit to countdown seconds.
func (t *AssessmentTask) TimeLimitSeconds() int {
	return t.TimeLimit * 60
}

// Submission is the submit-assessment payload.
type Submission struct {
	Type        string `json:"type"`
	Solution    string `json:"solution"`
	SubmittedAt string `json:"submitted_at"`
	TimeSpent   int    `json:"time_spent"` // seconds
}

// NewSubmission stamps a submission with at in RFC 3339.
func NewSubmission(taskType, solution string, at time.Time, elapsedSec int) Submission {
	return Submission{
		Type:        taskType,
		Solution:    solution,
		SubmittedAt: at.UTC().Format(time.RFC3339),
		TimeSpent:   elapsedSec,
	}
}

// SessionStatus is the status-endpoint payload.
type SessionStatus struct {
	SessionID string   `json:"session_id"`
	Status    string   `json:"status"`
	Progress  Progress `json:"progress"`
}

// Progress summarises what the service has recorded for a session.
type Progress struct {
	CVUploaded         bool `json:"cv_uploaded"`
	QuestionsAnswered  int  `json:"questions_answered"`
	TotalQuestions     int  `json:"total_questions"`
	AssessmentComplete bool `json:"assessment_complete"`
	ReportGenerated    bool `json:"report_generated"`
}

// PingResult is the root-endpoint payload.
type PingResult struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// Report is the final evaluation.
type Report struct {
	CandidateInfo        CandidateInfo        `json:"candidate_info"`
	CVAnalysis           CVAnalysis           `json:"cv_analysis"`
	InterviewEvaluation  InterviewEvaluation  `json:"interview_evaluation"`
	AssessmentEvaluation AssessmentEvaluation `json:"assessment_evaluation"`
	OverallEvaluation    OverallEvaluation    `json:"overall_evaluation"`
	Recommendation       Recommendation       `json:"recommendation"`
	NextSteps            []string             `json:"next_steps"`
	SessionMetadata      SessionMetadata      `json:"session_metadata"`
}

type CandidateInfo struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	RoleApplied    string `json:"role_applied"`
	EvaluationDate string `json:"evaluation_date"`
}

type CVAnalysis struct {
	Summary         string   `json:"summary"`
	ExperienceYears int      `json:"experience_years"`
	KeySkills       []string `json:"key_skills"`
	Technologies    []string `json:"technologies"`
	EducationLevel  string   `json:"education_level"`
}

type InterviewEvaluation struct {
	QuestionsAnswered   int             `json:"questions_answered"`
	Scores              InterviewScores `json:"scores"`
	Strengths           []string        `json:"strengths"`
	AreasForImprovement []string        `json:"areas_for_improvement"`
	NotableResponses    []string        `json:"notable_responses"`
}

// InterviewScores are 0-5 per category.
type InterviewScores struct {
	Communication    float64           `json:"communication_score"`
	Technical        float64           `json:"technical_score"`
	ProblemSolving   float64           `json:"problem_solving_score"`
	Professionalism  float64           `json:"professionalism_score"`
	CultureFit       float64           `json:"culture_fit_score"`
	Overall          float64           `json:"overall_interview_score"`
	DetailedFeedback map[string]string `json:"detailed_feedback,omitempty"`
}

type AssessmentEvaluation struct {
	Completed          bool             `json:"completed"`
	Scores             AssessmentScores `json:"scores"`
	PerformanceSummary string           `json:"performance_summary"`
}

type AssessmentScores struct {
	Completed    bool    `json:"completed"`
	Correctness  float64 `json:"correctness,omitempty"`
	Quality      float64 `json:"quality,omitempty"`
	Efficiency   float64 `json:"efficiency,omitempty"`
	OverallScore float64 `json:"overall_score"`
}

type OverallEvaluation struct {
	OverallScore    float64        `json:"overall_score"`
	Recommendation  string         `json:"recommendation"`
	ConfidenceLevel string         `json:"confidence_level"`
	ScoreBreakdown  ScoreBreakdown `json:"score_breakdown"`
}

type ScoreBreakdown struct {
	InterviewScore  float64 `json:"interview_score"`
	AssessmentScore float64 `json:"assessment_score"`
	CVQuality       float64 `json:"cv_quality"`
}

type Recommendation struct {
	Decision         string `json:"decision"`
	Reasoning        string `json:"reasoning"`
	ConfidenceScore  string `json:"confidence_score"`
	FollowUpRequired bool   `json:"follow_up_required"`
}

type SessionMetadata struct {
	SessionID        string `json:"session_id"`
	DurationMinutes  int    `json:"duration_minutes"`
	CompletionStatus string `json:"completion_status"`
}
