package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clipforge/clipforge-agent/internal/session"
)

type InputService interface {
	ImportInput(ctx context.Context, ref InputRef) (*session.InputMeta, error)
}

type StubInput struct {
	logger *slog.Logger
}

func NewStubInput(logger *slog.Logger) *StubInput {
	return &StubInput{logger: logger}
}

func (s *StubInput) ImportInput(ctx context.Context, ref InputRef) (*session.InputMeta, error) {
	if ref.SourceType != session.SourceTypeUpload && ref.SourceType != session.SourceTypeYouTubeURL {
		return nil, fmt.Errorf("unsupported source type %q", ref.SourceType)
	}

	s.logger.Info("cloud input stub: import requested", "source_type", ref.SourceType)

	name := ref.DisplayName
	if name == "" {
		name = "stub-video.mp4"
	}
	meta := &session.InputMeta{
		SourceType:      ref.SourceType,
		Ref:             ref.UploadID,
		DisplayName:     name,
		DurationSeconds: 600,
		Width:           1920,
		Height:          1080,
		SizeBytes:       256 << 20,
	}
	if ref.SourceType == session.SourceTypeYouTubeURL {
		meta.Ref = ref.URL
	}
	return meta, nil
}
