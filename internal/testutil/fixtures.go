// Package testutil provides test helper utilities for hirepath tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempWorkspace creates a temporary directory with the given files and returns its path.
// Files is a map of relative path -> content. Directories are created as needed.
// The directory is automatically cleaned up when the test finishes.
func TempWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	for relPath, content := range files {
		absPath := filepath.Join(dir, relPath)
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			t.Fatalf("creating directory for %s: %v", relPath, err)
		}
		if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", relPath, err)
		}
	}

	return dir
}

// SampleCV returns the text of a short plain-text CV.
func SampleCV() string {
	return `Jane Doe
jane@example.com

Senior Backend Engineer, Acme (2019-2024)
- Built payment services in Go and PostgreSQL

Education: BSc Computer Science
Skills: Go, Kubernetes, PostgreSQL, gRPC, Terraform
`
}

// SampleReport returns a report body in the service's wire shape.
func SampleReport(sessionID string) map[string]any {
	return map[string]any{
		"candidate_info": map[string]any{
			"name":            "Jane Doe",
			"email":           "jane@example.com",
			"role_applied":    "Backend Engineer",
			"evaluation_date": "2026-01-01T10:00:00",
		},
		"cv_analysis": map[string]any{
			"summary":          "Backend engineer with five years of Go.",
			"experience_years": 4,
			"key_skills":       []string{"Go", "Kubernetes"},
			"technologies":     []string{"PostgreSQL", "gRPC"},
			"education_level":  "Bachelor's",
		},
		"interview_evaluation": map[string]any{
			"questions_answered": 2,
			"scores": map[string]any{
				"communication_score":     4,
				"technical_score":         4,
				"problem_solving_score":   3,
				"professionalism_score":   5,
				"culture_fit_score":       4,
				"overall_interview_score": 4.0,
				"detailed_feedback": map[string]string{
					"communication": "Clear and structured answers.",
				},
			},
			"strengths":             []string{"Excellent communication skills"},
			"areas_for_improvement": []string{"No significant areas of concern identified"},
			"notable_responses":     []string{"Question 1: five years of backend work..."},
		},
		"assessment_evaluation": map[string]any{
			"completed":           true,
			"scores":              map[string]any{"completed": true, "overall_score": 3.5},
			"performance_summary": "Good performance with minor areas for improvement",
		},
		"overall_evaluation": map[string]any{
			"overall_score":    3.8,
			"recommendation":   "Hire",
			"confidence_level": "Medium-High",
			"score_breakdown": map[string]any{
				"interview_score":  4.0,
				"assessment_score": 3.5,
				"cv_quality":       4.0,
			},
		},
		"recommendation": map[string]any{
			"decision":           "Hire",
			"reasoning":          "Strong candidate who meets role requirements.",
			"confidence_score":   "Medium-High",
			"follow_up_required": false,
		},
		"next_steps": []string{"Schedule follow-up interview with team lead", "Check references"},
		"session_metadata": map[string]any{
			"session_id":        sessionID,
			"duration_minutes":  51,
			"completion_status": "completed",
		},
	}
}
