// Package gateway is the single chokepoint for calls to the evaluation
// service. gateway.go implements the retry loop and content negotiation.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hirepath/hirepath/internal/clock"
	"github.com/hirepath/hirepath/internal/log"
)

// IdempotencyHeader carries a key that is stable across the retries of one
// Execute call.
const IdempotencyHeader = "Idempotency-Key"

// BodyKind tells callers how a response body was negotiated.
type BodyKind int

const (
	BodyText BodyKind = iota
	BodyJSON
	BodyAudio
)

// Options configures a Gateway. Zero values fall back to defaults.
type Options struct {
	MaxRetries int           // attempts per Execute, default 3
	RetryDelay time.Duration // base linear backoff
	RateLimit  int           // admissions per window, default 10
	RateWindow time.Duration // default 60s
	Timeout    time.Duration // per-attempt HTTP timeout, default 60s

	HTTPClient *http.Client
	Clock      clock.Clock
	// Sleep waits between attempts. Defaults to a timer select on ctx.
	Sleep func(ctx context.Context, d time.Duration) error
	// AudioDir receives negotiated audio bodies. Defaults to os.TempDir().
	AudioDir string
	Logger   *log.Logger
}

// Request describes one logical call.
type Request struct {
	Method         string
	Path           string
	Query          url.Values
	JSON           any       // encoded as the request body when non-nil
	File           *FilePart // sent as multipart/form-data when non-nil
	IdempotencyKey string    // generated when empty
	SessionID      string    // for log attribution only
	// BestEffort requests are admitted by their own limiter so that
	// optional traffic such as prompt audio never uses up the budget of
	// the calls a session depends on.
	BestEffort bool
}

// FilePart is a single multipart file field. Data is held in memory so the
// body can be rebuilt on each attempt.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Data        []byte
}

// Response is a negotiated successful response.
type Response struct {
	Status      int
	ContentType string
	Kind        BodyKind
	Body        []byte // raw body for JSON and text
	AudioPath   string // local playable file for audio bodies
	endpoint    string
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Decode unmarshals a JSON body into v. Non-JSON or malformed bodies are
// classified as KindUnknown.
func (r *Response) Decode(v any) error {
	if r.Kind != BodyJSON {
		return &Error{Kind: KindUnknown, Status: r.Status, Endpoint: r.endpoint,
			Message: fmt.Sprintf("expected JSON response, got %q", r.ContentType)}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{Kind: KindUnknown, Status: r.Status, Endpoint: r.endpoint,
			Message: "malformed response body", Err: err}
	}
	return nil
}

// Gateway executes requests against one base URL.
type Gateway struct {
	baseURL    *url.URL
	opts       Options
	limiter    *RateLimiter
	bestEffort *RateLimiter
}

// New creates a Gateway for baseURL.
func New(baseURL string, opts Options) (*Gateway, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	if opts.AudioDir == "" {
		opts.AudioDir = os.TempDir()
	}
	return &Gateway{
		baseURL: u,
		opts:    opts,
		limiter:    NewRateLimiter(opts.RateLimit, opts.RateWindow, opts.Clock),
		bestEffort: NewRateLimiter(opts.RateLimit, opts.RateWindow, opts.Clock),
	}, nil
}

// Execute performs req with rate limiting and retry. Connection and server
// failures are retried up to MaxRetries attempts with a delay of
// RetryDelay*attempt between them. Every other failure returns at once.
func (g *Gateway) Execute(ctx context.Context, req Request) (*Response, error) {
	limiter := g.limiter
	if req.BestEffort {
		limiter = g.bestEffort
	}
	if !limiter.Allow() {
		err := &Error{Kind: KindRateLimited, Endpoint: req.Path, Message: "too many requests"}
		g.logFailed(req, 0, err)
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	var lastErr error
	for attempt := 1; attempt <= g.opts.MaxRetries; attempt++ {
		resp, err := g.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.method(), req.Path, ctxErr)
		}

		lastErr = err
		if !err.Retryable() || attempt == g.opts.MaxRetries {
			g.logFailed(req, attempt, err)
			return nil, err
		}

		g.logRetry(req, attempt, err)
		if sleepErr := g.opts.Sleep(ctx, g.opts.RetryDelay*time.Duration(attempt)); sleepErr != nil {
			return nil, fmt.Errorf("%s %s: %w", req.method(), req.Path, sleepErr)
		}
	}
	return nil, lastErr
}

// attempt performs a single HTTP round-trip.
func (g *Gateway) attempt(ctx context.Context, req Request) (*Response, *Error) {
	body, contentType, err := req.encode()
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Endpoint: req.Path, Message: "encode request", Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.method(), g.resolve(req), body)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Endpoint: req.Path, Message: "build request", Err: err}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set(IdempotencyHeader, req.IdempotencyKey)

	httpResp, err := g.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Endpoint: req.Path, Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &Error{Kind: KindConnection, Status: httpResp.StatusCode, Endpoint: req.Path,
			Message: "read response", Err: err}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &Error{
			Kind:     classifyStatus(httpResp.StatusCode),
			Status:   httpResp.StatusCode,
			Endpoint: req.Path,
			Message:  detailMessage(data, httpResp.Status),
		}
	}

	return g.negotiate(req, httpResp, data)
}

// negotiate turns a 2xx body into a Response according to its media type.
func (g *Gateway) negotiate(req Request, httpResp *http.Response, data []byte) (*Response, *Error) {
	ct := httpResp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(ct)
	resp := &Response{Status: httpResp.StatusCode, ContentType: ct, Body: data, endpoint: req.Path}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		if !json.Valid(data) {
			return nil, &Error{Kind: KindUnknown, Status: resp.Status, Endpoint: req.Path,
				Message: "malformed JSON body"}
		}
		resp.Kind = BodyJSON
	case strings.HasPrefix(mediaType, "audio/"):
		if len(data) == 0 {
			return nil, &Error{Kind: KindUnknown, Status: resp.Status, Endpoint: req.Path,
				Message: "empty audio body"}
		}
		path, err := writeAudio(g.opts.AudioDir, mediaType, data)
		if err != nil {
			return nil, &Error{Kind: KindUnknown, Status: resp.Status, Endpoint: req.Path,
				Message: "store audio", Err: err}
		}
		resp.Kind = BodyAudio
		resp.AudioPath = path
		resp.Body = nil
	default:
		resp.Kind = BodyText
	}
	return resp, nil
}

func (g *Gateway) resolve(req Request) string {
	u := *g.baseURL
	u.Path = g.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String()
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// encode builds a fresh body for one attempt.
func (r Request) encode() (io.Reader, string, error) {
	switch {
	case r.File != nil:
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		ct := r.File.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, r.File.Field, r.File.FileName))
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(r.File.Data); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	default:
		return nil, "", nil
	}
}

// detailMessage extracts {"detail": ...} from an error body, the shape the
// service uses for rejections.
func detailMessage(data []byte, fallback string) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil && len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		return string(body.Detail)
	}
	if text := strings.TrimSpace(string(data)); text != "" && len(text) < 200 {
		return text
	}
	return fallback
}

func writeAudio(dir, mediaType string, data []byte) (string, error) {
	ext := ".audio"
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		ext = ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		ext = ".wav"
	case "audio/ogg":
		ext = ".ogg"
	case "audio/webm":
		ext = ".webm"
	}
	f, err := os.CreateTemp(dir, "hirepath-prompt-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// logRetry writes a request_retry event. Nil logger is a no-op.
func (g *Gateway) logRetry(req Request, attempt int, err *Error) {
	g.opts.Logger.Record(log.LogEvent{
		Event:     log.EventRequestRetry,
		SessionID: req.SessionID,
		Endpoint:  req.Path,
		Attempt:   attempt,
		Status:    err.Status,
		Reason:    err.Kind.String(),
		Error:     err.Error(),
	})
}

// logFailed writes a request_failed event. Nil logger is a no-op.
func (g *Gateway) logFailed(req Request, attempt int, err *Error) {
	g.opts.Logger.Record(log.LogEvent{
		Event:     log.EventRequestFailed,
		SessionID: req.SessionID,
		Endpoint:  req.Path,
		Attempt:   attempt,
		Status:    err.Status,
		Reason:    err.Kind.String(),
		Error:     err.Error(),
	})
}

// IsKind reports whether err is a gateway error of kind k.
func IsKind(err error, k Kind) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Kind == k
}
