// Package api is a typed client for the evaluation service. Every call goes
// through the request gateway.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hirepath/hirepath/internal/gateway"
)

// Executor runs one gateway request. *gateway.Gateway satisfies it.
type Executor interface {
	Execute(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// Client wraps an Executor with one method per endpoint.
type Client struct {
	gw Executor
}

// New creates a Client.
func New(gw Executor) *Client {
	return &Client{gw: gw}
}

func sessionPath(sessionID, suffix string) string {
	return "/session/" + url.PathEscape(sessionID) + "/" + suffix
}

// do executes req and decodes a JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, req gateway.Request, out any) error {
	resp, err := c.gw.Execute(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// StartSession obtains a new session identity.
func (c *Client) StartSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.do(ctx, gateway.Request{Method: http.MethodPost, Path: "/session/start"}, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", &gateway.Error{Kind: gateway.KindUnknown, Endpoint: "/session/start", Message: "no session_id in response"}
	}
	return out.SessionID, nil
}

// UploadCV sends a CV document for parsing. The upload only counts when the
// service answers status "success".
func (c *Client) UploadCV(ctx context.Context, sessionID, fileName string, data []byte) (*CVUploadResult, error) {
	path := sessionPath(sessionID, "upload-cv")
	var out CVUploadResult
	err := c.do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      path,
		SessionID: sessionID,
		File:      &gateway.FilePart{Field: "file", FileName: fileName, Data: data},
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Status != "success" {
		return nil, &gateway.Error{Kind: gateway.KindUnknown, Endpoint: path,
			Message: fmt.Sprintf("upload failed with status %q", out.Status)}
	}
	return &out, nil
}

// CurrentQuestion fetches the next question or the completion flag.
func (c *Client) CurrentQuestion(ctx context.Context, sessionID string) (*QuestionResponse, error) {
	var out QuestionResponse
	if err := c.do(ctx, gateway.Request{Path: sessionPath(sessionID, "question"), SessionID: sessionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitAnswer records one answer captured at at.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID, answer string, at time.Time) (*AnswerResult, error) {
	var out AnswerResult
	err := c.do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      sessionPath(sessionID, "answer"),
		SessionID: sessionID,
		JSON: map[string]string{
			"answer":    answer,
			"timestamp": at.UTC().Format(time.RFC3339),
		},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteInterview force-terminates the interview stage server-side.
func (c *Client) CompleteInterview(ctx context.Context, sessionID string) error {
	return c.do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      sessionPath(sessionID, "complete-interview"),
		SessionID: sessionID,
	}, nil)
}

// SpeechToText transcribes a capture artifact.
func (c *Client) SpeechToText(ctx context.Context, sessionID string, audio []byte, contentType string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	err := c.do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      sessionPath(sessionID, "speech-to-text"),
		SessionID: sessionID,
		File:      &gateway.FilePart{Field: "audio", FileName: "recording.webm", ContentType: contentType, Data: audio},
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Text, nil
}

// TextToSpeech synthesizes text and returns a local playable file.
func (c *Client) TextToSpeech(ctx context.Context, sessionID, text string) (string, error) {
	path := sessionPath(sessionID, "text-to-speech")
	resp, err := c.gw.Execute(ctx, gateway.Request{
		Path:       path,
		SessionID:  sessionID,
		Query:      url.Values{"text": {text}},
		BestEffort: true,
	})
	if err != nil {
		return "", err
	}
	if resp.Kind != gateway.BodyAudio || resp.AudioPath == "" {
		return "", &gateway.Error{Kind: gateway.KindUnknown, Endpoint: path, Message: "no playable audio in response"}
	}
	return resp.AudioPath, nil
}

// StartAssessment fetches the timed task for the session.
func (c *Client) StartAssessment(ctx context.Context, sessionID string) (*AssessmentTask, error) {
	path := sessionPath(sessionID, "start-assessment")
	var out struct {
		Assessment *AssessmentTask `json:"assessment"`
	}
	if err := c.do(ctx, gateway.Request{Method: http.MethodPost, Path: path, SessionID: sessionID}, &out); err != nil {
		return nil, err
	}
	if out.Assessment == nil {
		return nil, &gateway.Error{Kind: gateway.KindUnknown, Endpoint: path, Message: "no assessment in response"}
	}
	return out.Assessment, nil
}

// SubmitAssessment posts the solution. key is reused as the idempotency key
// so a resubmission of the same solution is recognisable server-side.
func (c *Client) SubmitAssessment(ctx context.Context, sessionID string, sub Submission, key string) error {
	return c.do(ctx, gateway.Request{
		Method:         http.MethodPost,
		Path:           sessionPath(sessionID, "submit-assessment"),
		SessionID:      sessionID,
		JSON:           sub,
		IdempotencyKey: key,
	}, nil)
}

// Report computes and returns the final evaluation.
func (c *Client) Report(ctx context.Context, sessionID string) (*Report, error) {
	var out Report
	if err := c.do(ctx, gateway.Request{Path: sessionPath(sessionID, "report"), SessionID: sessionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the service's view of session progress.
func (c *Client) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	var out SessionStatus
	if err := c.do(ctx, gateway.Request{Path: sessionPath(sessionID, "status"), SessionID: sessionID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping checks the service root.
func (c *Client) Ping(ctx context.Context) (*PingResult, error) {
	var out PingResult
	if err := c.do(ctx, gateway.Request{Path: "/"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
