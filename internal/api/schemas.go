package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/clipforge/clipforge-agent/internal/clip"
	"github.com/clipforge/clipforge-agent/internal/poll"
	"github.com/clipforge/clipforge-agent/internal/session"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
	AgentID string `json:"agent_id"`
}

type StatusResponse struct {
	State           string `json:"state"`
	SessionsCount   int    `json:"sessions_count"`
	SessionsRunning int    `json:"sessions_running"`
	LastError       string `json:"last_error,omitempty"`
}

type SetInputRequest struct {
	SourceType  string `json:"source_type"`
	UploadID    string `json:"upload_id,omitempty"`
	URL         string `json:"url,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Language    string `json:"language,omitempty"`
}

type DiscoverRequest struct {
	Instructions string `json:"instructions,omitempty"`
}

type DiscoverResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

type EditBoundsRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Title *string `json:"title,omitempty"`
}

type HighlightResponse struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Content string  `json:"content,omitempty"`
	Title   string  `json:"title,omitempty"`
}

type InputResponse struct {
	SourceType      string  `json:"source_type"`
	DisplayName     string  `json:"display_name,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
}

type OutputResponse struct {
	Filename       string `json:"filename"`
	HighlightIndex int    `json:"highlight_index"`
}

type SessionResponse struct {
	ID              string              `json:"id"`
	Status          string              `json:"status"`
	Input           *InputResponse      `json:"input,omitempty"`
	Highlights      []HighlightResponse `json:"highlights"`
	ApprovedIndexes []int               `json:"approved_highlight_indexes"`
	RemovedIndexes  []int               `json:"removed_highlight_indexes"`
	ReadyForRender  bool                `json:"ready_for_render"`
	Outputs         []OutputResponse    `json:"outputs,omitempty"`
	Progress        int                 `json:"progress"`
	Stage           string              `json:"stage,omitempty"`
	Error           string              `json:"error,omitempty"`
	CreatedAt       string              `json:"created_at"`
	UpdatedAt       string              `json:"updated_at"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SessionToResponse(s *session.Session) SessionResponse {
	resp := SessionResponse{
		ID:              s.ID,
		Status:          string(s.Status),
		Highlights:      make([]HighlightResponse, len(s.Highlights)),
		ApprovedIndexes: indexesOrEmpty(s.ApprovedIndexes),
		RemovedIndexes:  indexesOrEmpty(s.RemovedIndexes),
		ReadyForRender:  s.ReadyForRender(),
		Progress:        s.Progress,
		Stage:           s.Stage,
		Error:           s.Error,
		CreatedAt:       s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       s.UpdatedAt.Format(time.RFC3339),
	}
	for i, h := range s.Highlights {
		resp.Highlights[i] = HighlightResponse{Start: h.Start, End: h.End, Content: h.Content, Title: h.Title}
	}
	if s.Input != nil {
		resp.Input = &InputResponse{
			SourceType:      s.Input.SourceType,
			DisplayName:     s.Input.DisplayName,
			DurationSeconds: s.Input.DurationSeconds,
			Width:           s.Input.Width,
			Height:          s.Input.Height,
		}
	}
	for _, o := range s.Outputs {
		resp.Outputs = append(resp.Outputs, OutputResponse{Filename: o.Filename, HighlightIndex: o.HighlightIndex})
	}
	return resp
}

func indexesOrEmpty(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

// WriteDomainError maps workflow errors onto HTTP status codes. Collaborator
// outcomes get the gateway codes so a client can tell "the backend rejected
// this" apart from "the backend could not be reached".
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		WriteError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
	case errors.Is(err, session.ErrHighlightNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "HIGHLIGHT_NOT_FOUND")
	case errors.Is(err, clip.ErrDurationTooShort):
		WriteError(w, http.StatusUnprocessableEntity, err.Error(), "DURATION_TOO_SHORT")
	case errors.Is(err, session.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_INPUT")
	case errors.Is(err, session.ErrConflict):
		WriteError(w, http.StatusConflict, "session was modified concurrently, retry", "CONFLICT")
	case errors.Is(err, poll.ErrTimeout):
		WriteError(w, http.StatusGatewayTimeout, err.Error(), "UPSTREAM_TIMEOUT")
	case errors.Is(err, poll.ErrConnectivity), errors.Is(err, session.ErrUnavailable):
		WriteError(w, http.StatusBadGateway, err.Error(), "UPSTREAM_UNAVAILABLE")
	default:
		WriteError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
