package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/handlers"

	"github.com/clipforge/clipforge-agent/internal/cloud"
	"github.com/clipforge/clipforge-agent/internal/session"
	"github.com/clipforge/clipforge-agent/internal/workflow"
)

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultAllowedOrigins
	}

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions,
		}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Request-ID"}),
	))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Post("/sessions", createSessionHandler(cfg))
		r.Get("/sessions", listSessionsHandler(cfg))
		r.Get("/sessions/{id}", getSessionHandler(cfg))
		r.Post("/sessions/{id}/input", setInputHandler(cfg))
		r.Post("/sessions/{id}/discover", discoverHandler(cfg))
		r.Post("/sessions/{id}/regenerate", regenerateAllHandler(cfg))
		r.Post("/sessions/{id}/render", renderHandler(cfg))

		r.Post("/sessions/{id}/highlights/{index}/approve", decisionHandler(cfg, decisionApprove))
		r.Post("/sessions/{id}/highlights/{index}/reject", decisionHandler(cfg, decisionReject))
		r.Post("/sessions/{id}/highlights/{index}/remove", decisionHandler(cfg, decisionRemove))
		r.Post("/sessions/{id}/highlights/{index}/restore", decisionHandler(cfg, decisionRestore))
		r.Post("/sessions/{id}/highlights/{index}/regenerate", regenerateOneHandler(cfg))
		r.Put("/sessions/{id}/highlights/{index}/bounds", editBoundsHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
			AgentID: cfg.AgentID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := cfg.Sessions.ListSessions(r.Context(), 50)
		if err != nil {
			WriteDomainError(w, err)
			return
		}

		state := "idle"
		running := 0
		lastError := ""
		for _, s := range sessions {
			switch s.Status {
			case session.StatusTranscribing, session.StatusHighlighting, session.StatusRendering:
				running++
			case session.StatusError:
				if lastError == "" {
					lastError = s.Error
				}
			}
		}
		if running > 0 {
			state = "working"
		} else if lastError != "" {
			state = "error"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:           state,
			SessionsCount:   len(sessions),
			SessionsRunning: running,
			LastError:       lastError,
		})
	}
}

func createSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := cfg.Sessions.CreateSession(r.Context())
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, SessionToResponse(s))
	}
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := cfg.Sessions.ListSessions(r.Context(), 50)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		resp := SessionsResponse{Sessions: make([]SessionResponse, len(sessions))}
		for i, s := range sessions {
			resp.Sessions[i] = SessionToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := cfg.Sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

func setInputHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetInputRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		switch req.SourceType {
		case session.SourceTypeUpload:
			if req.UploadID == "" {
				WriteError(w, http.StatusBadRequest, "upload_id is required for upload sources", "BAD_REQUEST")
				return
			}
		case session.SourceTypeYouTubeURL:
			if req.URL == "" {
				WriteError(w, http.StatusBadRequest, "url is required for youtube_url sources", "BAD_REQUEST")
				return
			}
		default:
			WriteError(w, http.StatusBadRequest, "source_type must be upload or youtube_url", "BAD_REQUEST")
			return
		}

		s, err := cfg.Sessions.SetInput(r.Context(), chi.URLParam(r, "id"), cloud.InputRef{
			SourceType:  req.SourceType,
			UploadID:    req.UploadID,
			URL:         req.URL,
			DisplayName: req.DisplayName,
			Language:    req.Language,
		})
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

// discoverHandler starts the transcription and selection stages in the
// background and replies 202. Clients follow progress by polling the session.
func discoverHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req DiscoverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if _, err := cfg.Sessions.GetSession(r.Context(), id); err != nil {
			WriteDomainError(w, err)
			return
		}

		background := cfg.Background
		if background == nil {
			background = context.Background()
		}
		go func() {
			if _, err := cfg.Sessions.RunDiscovery(background, id, req.Instructions); err != nil {
				cfg.Logger.Error("discovery failed", "session_id", id, "error", err)
			}
		}()

		WriteJSON(w, http.StatusAccepted, DiscoverResponse{SessionID: id, Status: "accepted"})
	}
}

func regenerateAllHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DiscoverRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		s, err := cfg.Sessions.RegenerateAll(r.Context(), chi.URLParam(r, "id"), req.Instructions)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

func renderHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := cfg.Sessions.Render(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(s))
	}
}

type decision int

const (
	decisionApprove decision = iota
	decisionReject
	decisionRemove
	decisionRestore
)

func decisionHandler(cfg ServerConfig, d decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		index, ok := highlightIndex(w, r)
		if !ok {
			return
		}

		var view *workflow.HighlightView
		var err error
		switch d {
		case decisionApprove:
			view, err = cfg.Sessions.Approve(r.Context(), id, index)
		case decisionReject:
			view, err = cfg.Sessions.Reject(r.Context(), id, index)
		case decisionRemove:
			view, err = cfg.Sessions.Remove(r.Context(), id, index)
		case decisionRestore:
			view, err = cfg.Sessions.Restore(r.Context(), id, index)
		}
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func regenerateOneHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := highlightIndex(w, r)
		if !ok {
			return
		}
		view, err := cfg.Sessions.RegenerateOne(r.Context(), chi.URLParam(r, "id"), index)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func editBoundsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, ok := highlightIndex(w, r)
		if !ok {
			return
		}

		var req EditBoundsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		view, err := cfg.Sessions.EditBoundaries(r.Context(), chi.URLParam(r, "id"), index, req.Start, req.End, req.Title)
		if err != nil {
			WriteDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func highlightIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "highlight index must be an integer", "BAD_REQUEST")
		return 0, false
	}
	return index, true
}
