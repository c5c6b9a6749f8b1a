// Package session sequences the evaluation stages and caches completed
// stage outputs in SQLite.
package session

import (
	"fmt"
	"time"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/assessment"
	"github.com/hirepath/hirepath/internal/intake"
	"github.com/hirepath/hirepath/internal/interview"
)

// Stage is the next stage a session has to run.
type Stage string

const (
	StageIntake     Stage = "intake"
	StageInterview  Stage = "interview"
	StageAssessment Stage = "assessment"
	StageReport     Stage = "report"
	StageComplete   Stage = "complete"
)

var stageOrder = []Stage{StageIntake, StageInterview, StageAssessment, StageReport, StageComplete}

// Next returns the stage after s. StageComplete is its own successor.
func (s Stage) Next() Stage {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return StageComplete
}

// index orders stages; unknown stages sort first.
func (s Stage) index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// After reports whether s comes later in the sequence than o.
func (s Stage) After(o Stage) bool {
	return s.index() > o.index()
}

// ParseStage validates a stored stage name.
func ParseStage(v string) (Stage, error) {
	s := Stage(v)
	if s.index() < 0 {
		return "", fmt.Errorf("unknown stage %q", v)
	}
	return s, nil
}

// Session is the client-side record of one evaluation.
type Session struct {
	ID         string
	Stage      Stage
	CV         *intake.CVSummary
	Interview  *interview.Outcome
	Assessment *assessment.Outcome
	Report     *api.Report
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Summary provides a high-level view of a session for listing.
type Summary struct {
	ID        string
	Stage     Stage
	Answers   int
	UpdatedAt time.Time
}
