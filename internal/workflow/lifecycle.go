package workflow

import (
	"context"
	"fmt"

	"github.com/clipforge/clipforge-agent/internal/clip"
	"github.com/clipforge/clipforge-agent/internal/cloud"
	"github.com/clipforge/clipforge-agent/internal/poll"
	"github.com/clipforge/clipforge-agent/internal/session"
)

// Highlight review operates on positions, not identities: every operation
// below leaves len(Highlights) and all indices != i untouched, so indices a
// client is holding stay valid across concurrent edits.

func requireReview(s *session.Session) error {
	if s.Status != session.StatusAwaitingApproval {
		return fmt.Errorf("%w: session is %s, highlight review requires awaiting_approval",
			session.ErrInvalidInput, s.Status)
	}
	return nil
}

func checkIndex(s *session.Session, i int) error {
	if i < 0 || i >= len(s.Highlights) {
		return fmt.Errorf("%w: index %d outside highlight list of %d",
			session.ErrHighlightNotFound, i, len(s.Highlights))
	}
	return nil
}

// Approve marks a highlight accepted. Approving clears any removal tombstone
// so the two sets stay disjoint. Idempotent.
func (svc *Service) Approve(ctx context.Context, id string, index int) (*HighlightView, error) {
	return svc.mutateHighlights(ctx, id, index, func(s *session.Session) {
		s.ApprovedIndexes = session.AddIndex(s.ApprovedIndexes, index)
		s.RemovedIndexes = session.RemoveIndex(s.RemovedIndexes, index)
	})
}

// Reject un-approves a highlight without tombstoning it: the clip stays in
// the active set awaiting a new decision. Distinct from Remove.
func (svc *Service) Reject(ctx context.Context, id string, index int) (*HighlightView, error) {
	return svc.mutateHighlights(ctx, id, index, func(s *session.Session) {
		s.ApprovedIndexes = session.RemoveIndex(s.ApprovedIndexes, index)
	})
}

// Remove tombstones a highlight. The entry stays in Highlights so Restore can
// bring it back and positional references stay valid.
func (svc *Service) Remove(ctx context.Context, id string, index int) (*HighlightView, error) {
	return svc.mutateHighlights(ctx, id, index, func(s *session.Session) {
		s.RemovedIndexes = session.AddIndex(s.RemovedIndexes, index)
		s.ApprovedIndexes = session.RemoveIndex(s.ApprovedIndexes, index)
	})
}

// Restore lifts a removal tombstone. The highlight returns to pending review,
// not to approved.
func (svc *Service) Restore(ctx context.Context, id string, index int) (*HighlightView, error) {
	return svc.mutateHighlights(ctx, id, index, func(s *session.Session) {
		s.RemovedIndexes = session.RemoveIndex(s.RemovedIndexes, index)
	})
}

func (svc *Service) mutateHighlights(ctx context.Context, id string, index int, apply func(*session.Session)) (*HighlightView, error) {
	s, err := svc.withSession(ctx, id, func(s *session.Session) error {
		if err := requireReview(s); err != nil {
			return err
		}
		if err := checkIndex(s, index); err != nil {
			return err
		}
		apply(s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return viewOf(s), nil
}

// EditBoundaries replaces a highlight's time range (and optionally title)
// after clamping it to the video duration and clip length limits. The edited
// clip unconditionally returns to pending review: stale approval of new
// boundaries is never kept.
func (svc *Service) EditBoundaries(ctx context.Context, id string, index int, start, end float64, title *string) (*HighlightView, error) {
	s, err := svc.withSession(ctx, id, func(s *session.Session) error {
		if err := requireReview(s); err != nil {
			return err
		}
		if err := checkIndex(s, index); err != nil {
			return err
		}
		if s.Input == nil {
			return fmt.Errorf("%w: session has no input duration", session.ErrInvalidInput)
		}

		newStart, newEnd, err := clip.Clamp(start, end, s.Input.DurationSeconds,
			svc.limits.MinClipSeconds, svc.limits.MaxClipSeconds)
		if err != nil {
			return err
		}

		h := s.Highlights[index]
		h.Start = newStart
		h.End = newEnd
		if title != nil {
			h.Title = *title
		}
		s.Highlights[index] = h

		s.ApprovedIndexes = session.RemoveIndex(s.ApprovedIndexes, index)
		s.RemovedIndexes = session.RemoveIndex(s.RemovedIndexes, index)
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("highlight boundaries edited", "session_id", id, "index", index)
	return viewOf(s), nil
}

// RegenerateOne asks the selection collaborator for a single replacement clip,
// excluding every other live highlight's range so the new clip does not land
// on a moment the user already has. The replacement keeps the same index and
// returns to pending review.
func (svc *Service) RegenerateOne(ctx context.Context, id string, index int) (*HighlightView, error) {
	s, err := svc.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireReview(s); err != nil {
		return nil, err
	}
	if err := checkIndex(s, index); err != nil {
		return nil, err
	}
	if s.Transcript == nil || s.Input == nil {
		return nil, fmt.Errorf("%w: session has no transcript", session.ErrInvalidInput)
	}

	var exclude []cloud.Range
	for j, h := range s.Highlights {
		if j == index || session.ContainsIndex(s.RemovedIndexes, j) {
			continue
		}
		exclude = append(exclude, cloud.Range{Start: h.Start, End: h.End})
	}

	req := cloud.SelectionRequest{
		Segments:        s.Transcript.Segments,
		DurationSeconds: s.Input.DurationSeconds,
		Language:        s.Transcript.Language,
		MaxHighlights:   1,
		ExcludeRanges:   exclude,
	}
	candidates, err := poll.Retry(ctx, svc.poll.Retry, func(ctx context.Context) ([]session.Highlight, error) {
		return svc.cloud.Selector().SelectHighlights(ctx, req)
	})
	if err != nil {
		return nil, svc.asUnavailable("regenerate highlight", err)
	}
	candidates = svc.sanitizeCandidates(s.ID, s.Input.DurationSeconds, candidates)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: selector returned no usable replacement candidate", session.ErrUnavailable)
	}
	replacement := candidates[0]

	s, err = svc.withSession(ctx, id, func(s *session.Session) error {
		if err := requireReview(s); err != nil {
			return err
		}
		if err := checkIndex(s, index); err != nil {
			return err
		}
		s.Highlights[index] = replacement
		s.ApprovedIndexes = session.RemoveIndex(s.ApprovedIndexes, index)
		s.RemovedIndexes = session.RemoveIndex(s.RemovedIndexes, index)
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("highlight regenerated", "session_id", id, "index", index)
	return viewOf(s), nil
}

// propose replaces the highlight list wholesale and resets both index sets.
// Only the discovery and regenerate-all paths call it.
func propose(s *session.Session, highlights []session.Highlight) {
	s.Highlights = highlights
	s.ApprovedIndexes = []int{}
	s.RemovedIndexes = []int{}
	s.Outputs = nil
}
