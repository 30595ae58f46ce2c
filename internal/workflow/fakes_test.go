package workflow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clipforge/clipforge-agent/internal/cloud"
	"github.com/clipforge/clipforge-agent/internal/poll"
	"github.com/clipforge/clipforge-agent/internal/session"
)

// memRepo is an in-memory session store with the same optimistic-versioning
// contract as the SQLite repository.
type memRepo struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	config   map[string]string
}

func newMemRepo() *memRepo {
	return &memRepo{
		sessions: make(map[string]*session.Session),
		config:   make(map[string]string),
	}
}

func cloneSession(s *session.Session) *session.Session {
	c := *s
	c.Highlights = append([]session.Highlight(nil), s.Highlights...)
	c.ApprovedIndexes = append([]int(nil), s.ApprovedIndexes...)
	c.RemovedIndexes = append([]int(nil), s.RemovedIndexes...)
	c.Outputs = append([]session.Output(nil), s.Outputs...)
	return &c
}

func (r *memRepo) Create(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *memRepo) Get(ctx context.Context, id string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (r *memRepo) Update(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.sessions[s.ID]
	if !ok {
		return session.ErrSessionNotFound
	}
	if stored.Version != s.Version {
		return session.ErrConflict
	}
	s.Version++
	s.UpdatedAt = time.Now().UTC()
	r.sessions[s.ID] = cloneSession(s)
	return nil
}

func (r *memRepo) List(ctx context.Context, limit int) ([]*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*session.Session
	for _, s := range r.sessions {
		out = append(out, cloneSession(s))
	}
	return out, nil
}

func (r *memRepo) GetConfig(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config[key], nil
}

func (r *memRepo) SetConfig(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config[key] = value
	return nil
}

type transcriberStep struct {
	status cloud.TranscriptionStatus
	err    error
}

type fakeTranscriber struct {
	mu       sync.Mutex
	startErr error
	steps    []transcriberStep
	calls    int
}

func (f *fakeTranscriber) StartJob(ctx context.Context, sessionID string, ref cloud.InputRef) (cloud.JobHandle, error) {
	if f.startErr != nil {
		return cloud.JobHandle{}, f.startErr
	}
	return cloud.JobHandle{JobID: "job-" + sessionID}, nil
}

func (f *fakeTranscriber) JobStatus(ctx context.Context, h cloud.JobHandle) (cloud.TranscriptionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.steps) == 0 {
		return cloud.TranscriptionStatus{State: cloud.JobStateProcessing}, nil
	}
	step := f.steps[0]
	if len(f.steps) > 1 {
		f.steps = f.steps[1:]
	}
	f.calls++
	return step.status, step.err
}

type fakeSelector struct {
	mu      sync.Mutex
	results [][]session.Highlight
	err     error
	reqs    []cloud.SelectionRequest
}

func (f *fakeSelector) SelectHighlights(ctx context.Context, req cloud.SelectionRequest) ([]session.Highlight, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	out := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return out, nil
}

func (f *fakeSelector) lastReq(t *testing.T) cloud.SelectionRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs, "selector was never called")
	return f.reqs[len(f.reqs)-1]
}

type fakeInput struct {
	meta *session.InputMeta
	err  error
}

func (f *fakeInput) ImportInput(ctx context.Context, ref cloud.InputRef) (*session.InputMeta, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.meta != nil {
		return f.meta, nil
	}
	return &session.InputMeta{
		SourceType:      ref.SourceType,
		Ref:             ref.UploadID,
		DisplayName:     ref.DisplayName,
		DurationSeconds: 100,
	}, nil
}

type fakeRenderer struct {
	mu      sync.Mutex
	results []cloud.RenderResult
	err     error
	clips   []cloud.RenderClip
}

func (f *fakeRenderer) RenderClips(ctx context.Context, sessionID string, clips []cloud.RenderClip) ([]cloud.RenderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clips = clips
	if f.err != nil {
		return nil, f.err
	}
	if f.results != nil {
		return f.results, nil
	}
	out := make([]cloud.RenderResult, len(clips))
	for i, c := range clips {
		out[i] = cloud.RenderResult{Index: c.Index, Filename: "stub.mp4"}
	}
	return out, nil
}

type fakeCloud struct {
	input       *fakeInput
	transcriber *fakeTranscriber
	selector    *fakeSelector
	renderer    *fakeRenderer
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		input:       &fakeInput{},
		transcriber: &fakeTranscriber{},
		selector:    &fakeSelector{},
		renderer:    &fakeRenderer{},
	}
}

func (f *fakeCloud) Input() cloud.InputService               { return f.input }
func (f *fakeCloud) Transcriber() cloud.TranscriptionService { return f.transcriber }
func (f *fakeCloud) Selector() cloud.SelectionService        { return f.selector }
func (f *fakeCloud) Renderer() cloud.RenderService           { return f.renderer }

func instantSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newTestService(repo session.Repository, fc *fakeCloud) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := poll.Config{
		Interval:            time.Millisecond,
		MaxElapsed:          time.Minute,
		NetworkFailureLimit: 8,
		Sleep:               instantSleep,
		Retry:               poll.RetryConfig{Attempts: 2, Delay: time.Millisecond, Sleep: instantSleep},
	}
	return NewService(repo, fc, DefaultLimits(), cfg, logger)
}

// seedReviewSession stores a session parked in awaiting_approval with three
// proposed highlights over a 100s video.
func seedReviewSession(t *testing.T, repo session.Repository) *session.Session {
	t.Helper()

	s := session.New()
	s.Status = session.StatusAwaitingApproval
	s.Input = &session.InputMeta{
		SourceType:      session.SourceTypeUpload,
		Ref:             "up-1",
		DisplayName:     "episode-12.mp4",
		DurationSeconds: 100,
	}
	s.Transcript = &session.Transcript{
		Language: "en",
		Segments: []session.Segment{
			{Start: 0, End: 30, Text: "first part"},
			{Start: 30, End: 70, Text: "second part"},
			{Start: 70, End: 100, Text: "third part"},
		},
	}
	s.Highlights = []session.Highlight{
		{Start: 2, End: 12, Content: "first part", Title: "Opening"},
		{Start: 35, End: 55, Content: "second part", Title: "Middle"},
		{Start: 75, End: 95, Content: "third part", Title: "Closing"},
	}
	require.NoError(t, repo.Create(context.Background(), s))
	return s
}
