package cloud

import (
	"context"
	"log/slog"

	"github.com/clipforge/clipforge-agent/internal/session"
)

type SelectionService interface {
	SelectHighlights(ctx context.Context, req SelectionRequest) ([]session.Highlight, error)
}

// StubSelector turns transcript segments into candidate clips directly,
// skipping any segment overlapping an excluded range.
type StubSelector struct {
	logger *slog.Logger
}

func NewStubSelector(logger *slog.Logger) *StubSelector {
	return &StubSelector{logger: logger}
}

func (s *StubSelector) SelectHighlights(ctx context.Context, req SelectionRequest) ([]session.Highlight, error) {
	s.logger.Info("cloud selector stub: selection requested",
		"segments", len(req.Segments),
		"max_highlights", req.MaxHighlights,
		"excluded", len(req.ExcludeRanges),
	)

	max := req.MaxHighlights
	if max <= 0 {
		max = 5
	}

	var out []session.Highlight
	for _, seg := range req.Segments {
		if len(out) >= max {
			break
		}
		if overlapsAny(seg.Start, seg.End, req.ExcludeRanges) {
			continue
		}
		out = append(out, session.Highlight{
			Start:   seg.Start,
			End:     seg.End,
			Content: seg.Text,
		})
	}
	return out, nil
}

func overlapsAny(start, end float64, ranges []Range) bool {
	for _, r := range ranges {
		if start < r.End && end > r.Start {
			return true
		}
	}
	return false
}
