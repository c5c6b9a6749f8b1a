// Package report implements the final stage: fetching the evaluation,
// saving it under the session directory, and rendering it for the terminal.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/config"
	"github.com/hirepath/hirepath/internal/log"
)

const (
	jsonFile = "report.json"
	textFile = "report.txt"
)

// Service is the part of the evaluation API the report stage needs.
type Service interface {
	Report(ctx context.Context, sessionID string) (*api.Report, error)
}

// SessionDir returns .hirepath/sessions/<id> inside dir.
func SessionDir(dir, sessionID string) string {
	return filepath.Join(config.StateDir(dir), "sessions", sessionID)
}

// Generate fetches the report for sessionID and writes it under dir.
// A write failure is returned together with the fetched report so callers
// can still display it.
func Generate(ctx context.Context, svc Service, sessionID, dir string, logger *log.Logger) (*api.Report, error) {
	rep, err := svc.Report(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetching report: %w", err)
	}
	if rep.SessionMetadata.SessionID == "" {
		rep.SessionMetadata.SessionID = sessionID
	}

	logger.Record(log.LogEvent{
		Event:     log.EventReportGenerated,
		SessionID: sessionID,
		Stage:     "report",
		Reason:    rep.Recommendation.Decision,
	})

	if err := Write(SessionDir(dir, sessionID), rep); err != nil {
		return rep, fmt.Errorf("writing report: %w", err)
	}
	return rep, nil
}

// Write saves rep as report.json and report.txt in sessionDir, creating
// the directory if needed.
func Write(sessionDir string, rep *api.Report) error {
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(sessionDir, jsonFile), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing report json: %w", err)
	}

	text := format(rep, false)
	if err := os.WriteFile(filepath.Join(sessionDir, textFile), []byte(text), 0644); err != nil {
		return fmt.Errorf("writing report text: %w", err)
	}
	return nil
}

// Read loads a previously written report.json from sessionDir.
func Read(sessionDir string) (*api.Report, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, jsonFile))
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var rep api.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &rep, nil
}

// Format produces a terminal-friendly summary. Colours follow
// color.NoColor.
func Format(rep *api.Report) string {
	return format(rep, true)
}

// format renders rep, with colour only when colored is set and the
// terminal allows it.
func format(rep *api.Report, colored bool) string {
	var b strings.Builder
	heading := paint(colored, color.FgCyan, color.Bold)

	b.WriteString("========================================\n")
	b.WriteString(heading.Sprint("  Candidate Evaluation Report") + "\n")
	b.WriteString("========================================\n\n")

	ci := rep.CandidateInfo
	if ci.Name != "" {
		fmt.Fprintf(&b, "Candidate:   %s\n", ci.Name)
	}
	if ci.Email != "" {
		fmt.Fprintf(&b, "Email:       %s\n", ci.Email)
	}
	if ci.RoleApplied != "" {
		fmt.Fprintf(&b, "Role:        %s\n", ci.RoleApplied)
	}
	if id := rep.SessionMetadata.SessionID; id != "" {
		fmt.Fprintf(&b, "Session:     %s\n", id)
	}
	if m := rep.SessionMetadata.DurationMinutes; m > 0 {
		fmt.Fprintf(&b, "Duration:    %d min\n", m)
	}
	b.WriteString("\n")

	rec := rep.Recommendation
	fmt.Fprintf(&b, "Decision:    %s\n", decisionColor(colored, rec.Decision).Sprint(rec.Decision))
	if rec.ConfidenceScore != "" {
		fmt.Fprintf(&b, "Confidence:  %s\n", rec.ConfidenceScore)
	}
	fmt.Fprintf(&b, "Overall:     %s / 5\n", scoreColor(colored, rep.OverallEvaluation.OverallScore).Sprintf("%.1f", rep.OverallEvaluation.OverallScore))
	if rec.Reasoning != "" {
		fmt.Fprintf(&b, "Reasoning:   %s\n", rec.Reasoning)
	}
	if rec.FollowUpRequired {
		b.WriteString("Follow-up:   required\n")
	}
	b.WriteString("\n")

	b.WriteString(heading.Sprint("Interview Scores") + "\n")
	s := rep.InterviewEvaluation.Scores
	b.WriteString(scoreTable([][2]string{
		{"Communication", fmtScore(s.Communication)},
		{"Technical", fmtScore(s.Technical)},
		{"Problem solving", fmtScore(s.ProblemSolving)},
		{"Professionalism", fmtScore(s.Professionalism)},
		{"Culture fit", fmtScore(s.CultureFit)},
		{"Overall", fmtScore(s.Overall)},
	}))
	fmt.Fprintf(&b, "Questions answered: %d\n\n", rep.InterviewEvaluation.QuestionsAnswered)

	b.WriteString(heading.Sprint("Score Breakdown") + "\n")
	sb := rep.OverallEvaluation.ScoreBreakdown
	assessScore := fmtScore(sb.AssessmentScore)
	if !rep.AssessmentEvaluation.Completed {
		assessScore = "not completed"
	}
	b.WriteString(scoreTable([][2]string{
		{"Interview", fmtScore(sb.InterviewScore)},
		{"Assessment", assessScore},
		{"CV quality", fmtScore(sb.CVQuality)},
	}))
	if sum := rep.AssessmentEvaluation.PerformanceSummary; sum != "" {
		fmt.Fprintf(&b, "Assessment: %s\n", sum)
	}
	b.WriteString("\n")

	writeList(&b, "Strengths", rep.InterviewEvaluation.Strengths)
	writeList(&b, "Areas for Improvement", rep.InterviewEvaluation.AreasForImprovement)
	if cv := rep.CVAnalysis; len(cv.KeySkills) > 0 {
		writeList(&b, "Key Skills", cv.KeySkills)
	}
	writeList(&b, "Next Steps", rep.NextSteps)

	b.WriteString("========================================\n")
	return b.String()
}

func scoreTable(rows [][2]string) string {
	var buf strings.Builder
	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Category", "Score"})
	table.SetAutoWrapText(false)
	for _, r := range rows {
		table.Append([]string{r[0], r[1]})
	}
	table.Render()
	return buf.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title + ":\n")
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
	b.WriteString("\n")
}

func fmtScore(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// paint builds a colour. Plain colours never emit escape codes, whatever
// color.NoColor says.
func paint(colored bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if !colored {
		c.DisableColor()
	}
	return c
}

func decisionColor(colored bool, decision string) *color.Color {
	d := strings.ToLower(decision)
	switch {
	case strings.Contains(d, "no hire"), strings.Contains(d, "reject"):
		return paint(colored, color.FgRed, color.Bold)
	case strings.Contains(d, "hire"):
		return paint(colored, color.FgGreen, color.Bold)
	default:
		return paint(colored, color.FgYellow, color.Bold)
	}
}

// scoreColor grades a 0-5 score.
func scoreColor(colored bool, v float64) *color.Color {
	switch {
	case v >= 4:
		return paint(colored, color.FgGreen)
	case v >= 3:
		return paint(colored, color.FgYellow)
	default:
		return paint(colored, color.FgRed)
	}
}
