// Package intake validates and uploads the candidate CV.
package intake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hirepath/hirepath/internal/api"
	"github.com/hirepath/hirepath/internal/log"
)

var (
	ErrUnsupportedFile = errors.New("unsupported CV file type")
	ErrFileTooLarge    = errors.New("CV file too large")
	ErrEmptyFile       = errors.New("CV file is empty")
)

// allowedExtensions are the CV formats the parser accepts.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".doc":  true,
	".docx": true,
}

// Service is the part of the evaluation API intake needs.
type Service interface {
	UploadCV(ctx context.Context, sessionID, fileName string, data []byte) (*api.CVUploadResult, error)
}

// CVSummary is the intake stage output.
type CVSummary struct {
	FileName           string `json:"file_name"`
	Summary            string `json:"summary"`
	QuestionsGenerated int    `json:"questions_generated"`
}

// Controller runs the intake stage for one session.
type Controller struct {
	sessionID string
	svc       Service
	maxBytes  int64
	logger    *log.Logger
}

// New creates an intake controller. logger may be nil.
func New(sessionID string, svc Service, maxBytes int64, logger *log.Logger) *Controller {
	return &Controller{sessionID: sessionID, svc: svc, maxBytes: maxBytes, logger: logger}
}

// Validate checks the file's type and size without reading it.
func (c *Controller) Validate(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !allowedExtensions[ext] {
		return fmt.Errorf("%w: %q (use PDF, TXT, DOC or DOCX)", ErrUnsupportedFile, filepath.Base(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading CV: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %q is a directory", ErrUnsupportedFile, path)
	}
	if info.Size() == 0 {
		return ErrEmptyFile
	}
	if c.maxBytes > 0 && info.Size() > c.maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d MB limit", ErrFileTooLarge, info.Size(), c.maxBytes/(1024*1024))
	}
	return nil
}

// Upload validates path and sends it for parsing.
func (c *Controller) Upload(ctx context.Context, path string) (CVSummary, error) {
	if err := c.Validate(path); err != nil {
		return CVSummary{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return CVSummary{}, fmt.Errorf("reading CV: %w", err)
	}

	name := filepath.Base(path)
	res, err := c.svc.UploadCV(ctx, c.sessionID, name, data)
	if err != nil {
		return CVSummary{}, fmt.Errorf("uploading CV: %w", err)
	}

	c.logger.Record(log.LogEvent{
		Event:     log.EventCVUploaded,
		SessionID: c.sessionID,
		Stage:     "intake",
		Total:     res.QuestionsGenerated,
	})
	return CVSummary{
		FileName:           name,
		Summary:            res.CVSummary,
		QuestionsGenerated: res.QuestionsGenerated,
	}, nil
}
