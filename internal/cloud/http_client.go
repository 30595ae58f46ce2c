package cloud

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/clipforge/clipforge-agent/internal/session"
)

// APIError is a non-2xx response from a collaborator endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("collaborator request failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx) are
// considered permanent.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// HTTPClient talks to the ClipForge backend, which fronts the input,
// transcription, selection and render collaborators behind one API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	// Status polls go through a token bucket so tightening the poll
	// interval cannot hammer the backend.
	statusLimiter *rate.Limiter
}

func NewHTTPClient(baseURL, token string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger:        logger,
		statusLimiter: rate.NewLimiter(rate.Limit(2), 4),
	}
}

func (c *HTTPClient) Input() InputService               { return c }
func (c *HTTPClient) Transcriber() TranscriptionService { return c }
func (c *HTTPClient) Selector() SelectionService        { return c }
func (c *HTTPClient) Renderer() RenderService           { return c }

func (c *HTTPClient) ImportInput(ctx context.Context, ref InputRef) (*session.InputMeta, error) {
	var meta session.InputMeta
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/inputs/import", ref, &meta); err != nil {
		return nil, err
	}
	c.logger.Info("input imported",
		"source_type", meta.SourceType,
		"duration_s", meta.DurationSeconds,
		"display_name", meta.DisplayName,
	)
	return &meta, nil
}

func (c *HTTPClient) StartJob(ctx context.Context, sessionID string, ref InputRef) (JobHandle, error) {
	req := startTranscriptionRequest{
		SessionID: sessionID,
		MediaRef:  ref.UploadID,
		Language:  ref.Language,
	}
	if req.MediaRef == "" {
		req.MediaRef = ref.URL
	}

	var handle JobHandle
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/transcriptions", req, &handle); err != nil {
		return JobHandle{}, err
	}
	c.logger.Info("transcription job started", "session_id", sessionID, "job_id", handle.JobID)
	return handle, nil
}

func (c *HTTPClient) JobStatus(ctx context.Context, h JobHandle) (TranscriptionStatus, error) {
	if err := c.statusLimiter.Wait(ctx); err != nil {
		return TranscriptionStatus{}, err
	}

	var status TranscriptionStatus
	path := "/api/v1/transcriptions/" + h.JobID
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &status); err != nil {
		return TranscriptionStatus{}, err
	}
	return status, nil
}

func (c *HTTPClient) SelectHighlights(ctx context.Context, req SelectionRequest) ([]session.Highlight, error) {
	var resp selectionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/highlights/select", req, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("highlights selected", "count", len(resp.Highlights))
	return resp.Highlights, nil
}

func (c *HTTPClient) RenderClips(ctx context.Context, sessionID string, clips []RenderClip) ([]RenderResult, error) {
	req := renderRequest{SessionID: sessionID, Clips: clips}

	var resp renderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/renders", req, &resp); err != nil {
		return nil, err
	}
	c.logger.Info("clips rendered", "session_id", sessionID, "outputs", len(resp.Outputs))
	return resp.Outputs, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Clipforge-Request-Id", generateRequestID())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
