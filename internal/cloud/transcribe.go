package cloud

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clipforge/clipforge-agent/internal/session"
)

type TranscriptionService interface {
	StartJob(ctx context.Context, sessionID string, ref InputRef) (JobHandle, error)
	// JobStatus reports the job's state. A failed job is reported in the
	// status payload, not as a transport error.
	JobStatus(ctx context.Context, h JobHandle) (TranscriptionStatus, error)
}

// StubTranscriber completes a started job after a couple of status polls so
// the long-poll loop gets exercised end to end.
type StubTranscriber struct {
	logger *slog.Logger

	mu    sync.Mutex
	polls map[string]int
}

func NewStubTranscriber(logger *slog.Logger) *StubTranscriber {
	return &StubTranscriber{logger: logger, polls: make(map[string]int)}
}

func (s *StubTranscriber) StartJob(ctx context.Context, sessionID string, ref InputRef) (JobHandle, error) {
	s.logger.Info("cloud transcription stub: job started", "session_id", sessionID)
	return JobHandle{JobID: "stub-" + sessionID}, nil
}

func (s *StubTranscriber) JobStatus(ctx context.Context, h JobHandle) (TranscriptionStatus, error) {
	s.mu.Lock()
	s.polls[h.JobID]++
	n := s.polls[h.JobID]
	s.mu.Unlock()

	switch n {
	case 1:
		return TranscriptionStatus{State: JobStateProcessing, Progress: 40, Stage: "transcribing audio"}, nil
	case 2:
		return TranscriptionStatus{State: JobStateProcessing, Progress: 85, Stage: "aligning words"}, nil
	default:
		return TranscriptionStatus{
			State:    JobStateCompleted,
			Progress: 100,
			Transcript: &session.Transcript{
				Language: "en",
				Segments: []session.Segment{
					{Start: 0, End: 6.5, Text: "Welcome back to the show."},
					{Start: 6.5, End: 14.2, Text: "Today we are talking about something special."},
					{Start: 14.2, End: 25.0, Text: "Let's get right into it."},
				},
			},
		}, nil
	}
}
