package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/clipforge/clipforge-agent/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHTTPClient_StartJob(t *testing.T) {
	var receivedAuth string
	var receivedBody startTranscriptionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transcriptions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		receivedAuth = r.Header.Get("Authorization")
		if r.Header.Get("X-Clipforge-Request-Id") == "" {
			t.Error("missing request id header")
		}

		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &receivedBody)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(JobHandle{JobID: "job-77"})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-token", testLogger())

	handle, err := client.StartJob(context.Background(), "sess-1", InputRef{
		SourceType: session.SourceTypeUpload,
		UploadID:   "up-42",
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if handle.JobID != "job-77" {
		t.Errorf("job id = %q, want %q", handle.JobID, "job-77")
	}
	if receivedAuth != "Bearer test-token" {
		t.Errorf("auth = %q, want %q", receivedAuth, "Bearer test-token")
	}
	if receivedBody.SessionID != "sess-1" || receivedBody.MediaRef != "up-42" {
		t.Errorf("request body = %+v", receivedBody)
	}
}

func TestHTTPClient_JobStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transcriptions/job-77" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(TranscriptionStatus{
			State:    JobStateProcessing,
			Progress: 35,
			Stage:    "transcribing audio",
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", testLogger())

	status, err := client.JobStatus(context.Background(), JobHandle{JobID: "job-77"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.State != JobStateProcessing || status.Progress != 35 {
		t.Errorf("status = %+v", status)
	}
}

func TestHTTPClient_SelectHighlights(t *testing.T) {
	var received SelectionRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/highlights/select" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)

		json.NewEncoder(w).Encode(selectionResponse{Highlights: []session.Highlight{
			{Start: 10, End: 32, Content: "the big reveal", Title: "The Big Reveal"},
		}})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", testLogger())

	highlights, err := client.SelectHighlights(context.Background(), SelectionRequest{
		Segments:        []session.Segment{{Start: 0, End: 60, Text: "..."}},
		DurationSeconds: 600,
		MaxHighlights:   1,
		ExcludeRanges:   []Range{{Start: 100, End: 130}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(highlights) != 1 || highlights[0].Title != "The Big Reveal" {
		t.Errorf("highlights = %+v", highlights)
	}
	if len(received.ExcludeRanges) != 1 || received.ExcludeRanges[0].Start != 100 {
		t.Errorf("exclude ranges not forwarded: %+v", received.ExcludeRanges)
	}
}

func TestHTTPClient_RenderClips(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/renders" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req renderRequest
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &req)

		outputs := make([]RenderResult, len(req.Clips))
		for i, c := range req.Clips {
			outputs[i] = RenderResult{Index: c.Index, Filename: "out.mp4"}
		}
		json.NewEncoder(w).Encode(renderResponse{Outputs: outputs})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", testLogger())

	results, err := client.RenderClips(context.Background(), "sess-1", []RenderClip{
		{Index: 0, Start: 10, End: 32},
		{Index: 2, Start: 100, End: 130},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 || results[1].Index != 2 {
		t.Errorf("results = %+v", results)
	}
}

func TestHTTPClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", testLogger())

	_, err := client.JobStatus(context.Background(), JobHandle{JobID: "x"})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d", apiErr.StatusCode)
	}
	if !apiErr.IsRetryable() {
		t.Error("5xx should be retryable")
	}
}

func TestHTTPClient_ClientErrorNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", testLogger())

	_, err := client.ImportInput(context.Background(), InputRef{SourceType: session.SourceTypeUpload})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.IsRetryable() {
		t.Error("4xx must not be retryable")
	}
}
