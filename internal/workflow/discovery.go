package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/clipforge/clipforge-agent/internal/clip"
	"github.com/clipforge/clipforge-agent/internal/cloud"
	"github.com/clipforge/clipforge-agent/internal/poll"
	"github.com/clipforge/clipforge-agent/internal/session"
)

// RunDiscovery drives input_ready -> transcribing -> highlighting ->
// awaiting_approval: it starts the transcription job, tracks it through the
// resilient long-poll loop, then asks the selection collaborator for the
// initial highlight list. A failure at either step parks the session in
// error with the message stored; the caller can re-run discovery without
// re-importing the input.
func (svc *Service) RunDiscovery(ctx context.Context, id, instructions string) (*session.Session, error) {
	s, err := svc.withSession(ctx, id, func(s *session.Session) error {
		if s.Input == nil {
			return fmt.Errorf("%w: session has no input", session.ErrInvalidInput)
		}
		if !session.CanTransition(s.Status, session.StatusTranscribing) {
			return fmt.Errorf("%w: cannot start discovery while %s", session.ErrInvalidInput, s.Status)
		}
		s.Status = session.StatusTranscribing
		s.Error = ""
		s.Progress = 0
		s.Stage = "starting transcription"
		s.Transcript = nil
		propose(s, []session.Highlight{})
		return nil
	})
	if err != nil {
		return nil, err
	}

	transcript, err := svc.transcribe(ctx, s)
	if err != nil {
		return nil, svc.failStage(ctx, id, "transcription", err)
	}

	s, err = svc.withSession(ctx, id, func(s *session.Session) error {
		s.Transcript = transcript
		s.Status = session.StatusHighlighting
		s.Progress = 100
		s.Stage = "selecting highlights"
		return nil
	})
	if err != nil {
		return nil, err
	}

	highlights, err := svc.selectHighlights(ctx, s, instructions)
	if err != nil {
		return nil, svc.failStage(ctx, id, "highlight selection", err)
	}

	s, err = svc.withSession(ctx, id, func(s *session.Session) error {
		propose(s, highlights)
		s.Status = session.StatusAwaitingApproval
		s.Stage = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.logger.Info("discovery complete",
		"session_id", id,
		"segments", len(transcript.Segments),
		"highlights", len(highlights),
	)
	return s, nil
}

// RegenerateAll re-runs highlight selection against the existing transcript,
// replacing the whole list and dropping all review decisions.
func (svc *Service) RegenerateAll(ctx context.Context, id, instructions string) (*session.Session, error) {
	s, err := svc.withSession(ctx, id, func(s *session.Session) error {
		if s.Transcript == nil {
			return fmt.Errorf("%w: session has no transcript", session.ErrInvalidInput)
		}
		if !session.CanTransition(s.Status, session.StatusHighlighting) {
			return fmt.Errorf("%w: cannot regenerate highlights while %s", session.ErrInvalidInput, s.Status)
		}
		s.Status = session.StatusHighlighting
		s.Error = ""
		s.Stage = "selecting highlights"
		return nil
	})
	if err != nil {
		return nil, err
	}

	highlights, err := svc.selectHighlights(ctx, s, instructions)
	if err != nil {
		return nil, svc.failStage(ctx, id, "highlight selection", err)
	}

	s, err = svc.withSession(ctx, id, func(s *session.Session) error {
		propose(s, highlights)
		s.Status = session.StatusAwaitingApproval
		s.Stage = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("highlights regenerated", "session_id", id, "count", len(highlights))
	return s, nil
}

// Render invokes the render collaborator for the approved, non-removed
// highlights. The approval gate must be satisfied first. A render failure
// returns the session to awaiting_approval with the error stored; the user's
// approvals are never discarded.
func (svc *Service) Render(ctx context.Context, id string) (*session.Session, error) {
	s, err := svc.withSession(ctx, id, func(s *session.Session) error {
		if err := requireReview(s); err != nil {
			return err
		}
		if !s.ReadyForRender() {
			return fmt.Errorf("%w: approval gate not satisfied: every active highlight must be approved",
				session.ErrInvalidInput)
		}
		s.Status = session.StatusApproved
		s.Error = ""
		return nil
	})
	if err != nil {
		return nil, err
	}

	s, err = svc.withSession(ctx, id, func(s *session.Session) error {
		s.Status = session.StatusRendering
		s.Stage = "rendering clips"
		return nil
	})
	if err != nil {
		return nil, err
	}

	clips := make([]cloud.RenderClip, 0, len(s.Highlights))
	for _, i := range s.ActiveIndexes() {
		h := s.Highlights[i]
		clips = append(clips, cloud.RenderClip{Index: i, Start: h.Start, End: h.End, Title: h.Title})
	}

	results, err := poll.Retry(ctx, svc.poll.Retry, func(ctx context.Context) ([]cloud.RenderResult, error) {
		return svc.cloud.Renderer().RenderClips(ctx, id, clips)
	})
	if err != nil {
		wrapped := svc.asUnavailable("render", err)
		if _, ferr := svc.withSession(ctx, id, func(s *session.Session) error {
			s.Status = session.StatusAwaitingApproval
			s.Stage = ""
			s.Error = wrapped.Error()
			return nil
		}); ferr != nil {
			svc.logger.Error("failed to record render failure", "session_id", id, "error", ferr)
		}
		return nil, wrapped
	}

	outputs := make([]session.Output, len(results))
	for i, r := range results {
		filename := r.Filename
		if filename == "" {
			filename = clipFilename(id, r.Index, titleOf(s, r.Index))
		}
		outputs[i] = session.Output{Filename: filename, HighlightIndex: r.Index}
	}

	s, err = svc.withSession(ctx, id, func(s *session.Session) error {
		s.Outputs = outputs
		s.Status = session.StatusComplete
		s.Stage = ""
		s.Progress = 100
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("render complete", "session_id", id, "outputs", len(outputs))
	return s, nil
}

func (svc *Service) transcribe(ctx context.Context, s *session.Session) (*session.Transcript, error) {
	ref := cloud.InputRef{
		SourceType: s.Input.SourceType,
		UploadID:   s.Input.Ref,
	}
	if s.Input.SourceType == session.SourceTypeYouTubeURL {
		ref.UploadID = ""
		ref.URL = s.Input.Ref
	}

	handle, err := poll.Retry(ctx, svc.poll.Retry, func(ctx context.Context) (cloud.JobHandle, error) {
		return svc.cloud.Transcriber().StartJob(ctx, s.ID, ref)
	})
	if err != nil {
		return nil, svc.asUnavailable("start transcription", err)
	}

	cfg := svc.poll
	cfg.OnProgress = func(progress int, stage string) {
		svc.recordProgress(ctx, s.ID, progress, stage)
	}

	transcript, err := poll.Wait(ctx, cfg, func(ctx context.Context) (poll.Status[*session.Transcript], error) {
		st, err := svc.cloud.Transcriber().JobStatus(ctx, handle)
		if err != nil {
			return poll.Status[*session.Transcript]{}, err
		}
		switch st.State {
		case cloud.JobStateCompleted:
			if st.Transcript == nil {
				return poll.Status[*session.Transcript]{},
					fmt.Errorf("%w: job completed without a transcript", session.ErrUnavailable)
			}
			return poll.Status[*session.Transcript]{Done: true, Result: st.Transcript}, nil
		case cloud.JobStateFailed:
			return poll.Status[*session.Transcript]{},
				fmt.Errorf("%w: transcription failed: %s", session.ErrUnavailable, st.Message)
		default:
			return poll.Status[*session.Transcript]{Progress: st.Progress, Stage: st.Stage}, nil
		}
	})
	if err != nil {
		return nil, svc.asUnavailable("transcription", err)
	}
	return transcript, nil
}

func (svc *Service) selectHighlights(ctx context.Context, s *session.Session, instructions string) ([]session.Highlight, error) {
	req := cloud.SelectionRequest{
		Segments:        s.Transcript.Segments,
		DurationSeconds: s.Input.DurationSeconds,
		Language:        s.Transcript.Language,
		Instructions:    instructions,
		MaxHighlights:   svc.limits.MaxHighlights,
	}
	highlights, err := poll.Retry(ctx, svc.poll.Retry, func(ctx context.Context) ([]session.Highlight, error) {
		return svc.cloud.Selector().SelectHighlights(ctx, req)
	})
	if err != nil {
		return nil, svc.asUnavailable("select highlights", err)
	}
	highlights = svc.sanitizeCandidates(s.ID, s.Input.DurationSeconds, highlights)
	if len(highlights) == 0 {
		return nil, fmt.Errorf("%w: selector returned no usable highlights", session.ErrUnavailable)
	}
	return highlights, nil
}

// sanitizeCandidates normalizes selector output before it is stored. Every
// stored highlight must satisfy start < end within [0, duration]; a candidate
// lying entirely outside the video is dropped rather than clamped, since any
// range fabricated for it would not correspond to a real moment.
func (svc *Service) sanitizeCandidates(id string, duration float64, candidates []session.Highlight) []session.Highlight {
	out := make([]session.Highlight, 0, len(candidates))
	for i, h := range candidates {
		lo, hi := h.Start, h.End
		if hi < lo {
			lo, hi = hi, lo
		}
		if math.IsNaN(lo) || math.IsNaN(hi) || hi <= 0 || lo >= duration {
			svc.logger.Warn("dropping highlight outside the video",
				"session_id", id, "candidate", i, "start", h.Start, "end", h.End)
			continue
		}
		start, end, err := clip.Clamp(h.Start, h.End, duration,
			svc.limits.MinClipSeconds, svc.limits.MaxClipSeconds)
		if err != nil {
			svc.logger.Warn("dropping unclampable highlight",
				"session_id", id, "candidate", i, "error", err)
			continue
		}
		h.Start = start
		h.End = end
		out = append(out, h)
	}
	return out
}

// recordProgress persists transcription progress so clients polling the
// session see it. Best-effort: a write conflict never interrupts the job.
func (svc *Service) recordProgress(ctx context.Context, id string, progress int, stage string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	_, err := svc.withSession(ctx, id, func(s *session.Session) error {
		if s.Status != session.StatusTranscribing {
			return nil
		}
		s.Progress = progress
		s.Stage = stage
		return nil
	})
	if err != nil {
		svc.logger.Warn("failed to record progress", "session_id", id, "error", err)
	}
}

// failStage stores a stage failure on the session and routes it to error so
// the stage can be re-attempted from the last good checkpoint.
func (svc *Service) failStage(ctx context.Context, id, stage string, cause error) error {
	if errors.Is(cause, context.Canceled) {
		return cause
	}
	svc.logger.Error("stage failed", "session_id", id, "stage", stage, "error", cause)

	if _, err := svc.withSession(ctx, id, func(s *session.Session) error {
		if session.CanTransition(s.Status, session.StatusError) {
			s.Status = session.StatusError
		}
		s.Stage = ""
		s.Error = cause.Error()
		return nil
	}); err != nil {
		svc.logger.Error("failed to record stage failure", "session_id", id, "error", err)
	}
	return cause
}
