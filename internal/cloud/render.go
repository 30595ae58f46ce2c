package cloud

import (
	"context"
	"fmt"
	"log/slog"
)

type RenderService interface {
	RenderClips(ctx context.Context, sessionID string, clips []RenderClip) ([]RenderResult, error)
}

type StubRenderer struct {
	logger *slog.Logger
}

func NewStubRenderer(logger *slog.Logger) *StubRenderer {
	return &StubRenderer{logger: logger}
}

func (s *StubRenderer) RenderClips(ctx context.Context, sessionID string, clips []RenderClip) ([]RenderResult, error) {
	s.logger.Info("cloud render stub: render requested", "session_id", sessionID, "clips", len(clips))

	results := make([]RenderResult, len(clips))
	for i, c := range clips {
		results[i] = RenderResult{
			Index:    c.Index,
			Filename: fmt.Sprintf("%s_clip_%02d.mp4", sessionID, c.Index),
		}
	}
	return results, nil
}
