// Package cloud holds the clients for the external collaborators the agent
// drives: input import, transcription, highlight selection and rendering.
// Each collaborator is specified at its interface boundary only; the agent
// never looks inside them.
package cloud

import "log/slog"

type Client interface {
	Input() InputService
	Transcriber() TranscriptionService
	Selector() SelectionService
	Renderer() RenderService
}

// StubClient serves every collaborator locally with canned results. It is
// used when no backend is configured so the agent stays explorable offline.
type StubClient struct {
	input       *StubInput
	transcriber *StubTranscriber
	selector    *StubSelector
	renderer    *StubRenderer
	logger      *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{
		input:       NewStubInput(logger),
		transcriber: NewStubTranscriber(logger),
		selector:    NewStubSelector(logger),
		renderer:    NewStubRenderer(logger),
		logger:      logger,
	}
}

func (c *StubClient) Input() InputService {
	return c.input
}

func (c *StubClient) Transcriber() TranscriptionService {
	return c.transcriber
}

func (c *StubClient) Selector() SelectionService {
	return c.selector
}

func (c *StubClient) Renderer() RenderService {
	return c.renderer
}
