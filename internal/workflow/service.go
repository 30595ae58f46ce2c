// Package workflow drives a session through its stages and owns every
// mutation of the highlight list. All writes go through a read-modify-write
// loop against the optimistic-versioned session store, so two operations
// racing on one session never lose updates; operations on different sessions
// never block each other.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clipforge/clipforge-agent/internal/cloud"
	"github.com/clipforge/clipforge-agent/internal/poll"
	"github.com/clipforge/clipforge-agent/internal/session"
)

// casAttempts bounds the read-modify-write loop when CAS writes keep losing.
const casAttempts = 5

// Limits are the clip duration constraints enforced on every boundary edit.
type Limits struct {
	MinClipSeconds float64
	MaxClipSeconds float64
	MaxHighlights  int
}

func DefaultLimits() Limits {
	return Limits{MinClipSeconds: 1, MaxClipSeconds: 45, MaxHighlights: 10}
}

// SessionService is the transport-agnostic surface of the workflow engine.
type SessionService interface {
	CreateSession(ctx context.Context) (*session.Session, error)
	GetSession(ctx context.Context, id string) (*session.Session, error)
	ListSessions(ctx context.Context, limit int) ([]*session.Session, error)
	SetInput(ctx context.Context, id string, ref cloud.InputRef) (*session.Session, error)
	RunDiscovery(ctx context.Context, id, instructions string) (*session.Session, error)
	RegenerateAll(ctx context.Context, id, instructions string) (*session.Session, error)

	Approve(ctx context.Context, id string, index int) (*HighlightView, error)
	Reject(ctx context.Context, id string, index int) (*HighlightView, error)
	Remove(ctx context.Context, id string, index int) (*HighlightView, error)
	Restore(ctx context.Context, id string, index int) (*HighlightView, error)
	RegenerateOne(ctx context.Context, id string, index int) (*HighlightView, error)
	EditBoundaries(ctx context.Context, id string, index int, start, end float64, title *string) (*HighlightView, error)

	Render(ctx context.Context, id string) (*session.Session, error)
}

// HighlightView is the slice of session state a caller needs to re-render
// its highlight list after a mutation, without reloading the whole session.
type HighlightView struct {
	Highlights      []session.Highlight `json:"highlights"`
	ApprovedIndexes []int               `json:"approved_highlight_indexes"`
	RemovedIndexes  []int               `json:"removed_highlight_indexes"`
	ReadyForRender  bool                `json:"ready_for_render"`
}

func viewOf(s *session.Session) *HighlightView {
	return &HighlightView{
		Highlights:      s.Highlights,
		ApprovedIndexes: s.ApprovedIndexes,
		RemovedIndexes:  s.RemovedIndexes,
		ReadyForRender:  s.ReadyForRender(),
	}
}

type Service struct {
	repo   session.Repository
	cloud  cloud.Client
	limits Limits
	poll   poll.Config
	logger *slog.Logger
}

func NewService(repo session.Repository, cloudClient cloud.Client, limits Limits, pollCfg poll.Config, logger *slog.Logger) *Service {
	if limits.MinClipSeconds <= 0 {
		limits = DefaultLimits()
	}
	return &Service{
		repo:   repo,
		cloud:  cloudClient,
		limits: limits,
		poll:   pollCfg,
		logger: logger,
	}
}

func (svc *Service) CreateSession(ctx context.Context) (*session.Session, error) {
	s := session.New()
	if err := svc.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	svc.logger.Info("session created", "session_id", s.ID)
	return s, nil
}

func (svc *Service) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return svc.repo.Get(ctx, id)
}

func (svc *Service) ListSessions(ctx context.Context, limit int) ([]*session.Session, error) {
	return svc.repo.List(ctx, limit)
}

func (svc *Service) SetInput(ctx context.Context, id string, ref cloud.InputRef) (*session.Session, error) {
	meta, err := poll.Retry(ctx, svc.poll.Retry, func(ctx context.Context) (*session.InputMeta, error) {
		return svc.cloud.Input().ImportInput(ctx, ref)
	})
	if err != nil {
		return nil, svc.asUnavailable("import input", err)
	}
	if meta.DurationSeconds < svc.limits.MinClipSeconds {
		return nil, fmt.Errorf("%w: video is %.1fs, shorter than the minimum clip length",
			session.ErrInvalidInput, meta.DurationSeconds)
	}

	s, err := svc.withSession(ctx, id, func(s *session.Session) error {
		if s.Input != nil {
			return fmt.Errorf("%w: input already set", session.ErrInvalidInput)
		}
		if !session.CanTransition(s.Status, session.StatusInputReady) {
			return fmt.Errorf("%w: cannot set input while %s", session.ErrInvalidInput, s.Status)
		}
		s.Input = meta
		s.Status = session.StatusInputReady
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Info("input ready",
		"session_id", id,
		"source_type", meta.SourceType,
		"duration_s", meta.DurationSeconds,
	)
	return s, nil
}

// withSession runs one read-modify-write cycle against the store, retrying
// when the optimistic write loses to a concurrent mutation.
func (svc *Service) withSession(ctx context.Context, id string, mutate func(*session.Session) error) (*session.Session, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		s, err := svc.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(s); err != nil {
			return nil, err
		}
		err = svc.repo.Update(ctx, s)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, session.ErrConflict) {
			return nil, err
		}
		svc.logger.Debug("session write conflict, retrying", "session_id", id, "attempt", attempt+1)
	}
	return nil, session.ErrConflict
}

// asUnavailable wraps collaborator failures as ErrUnavailable while letting
// poller outcomes and cancellation keep their own identity.
func (svc *Service) asUnavailable(op string, err error) error {
	switch {
	case errors.Is(err, poll.ErrTimeout),
		errors.Is(err, poll.ErrConnectivity),
		errors.Is(err, context.Canceled),
		errors.Is(err, session.ErrUnavailable),
		errors.Is(err, session.ErrInvalidInput):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, session.ErrUnavailable, err)
	}
}
