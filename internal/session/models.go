package session

import (
	"time"

	"github.com/google/uuid"
)

// Status is the workflow stage a session is in. Transitions are owned by the
// workflow service; nothing else mutates it.
type Status string

const (
	StatusCreated          Status = "created"
	StatusInputReady       Status = "input_ready"
	StatusTranscribing     Status = "transcribing"
	StatusHighlighting     Status = "highlighting"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusRendering        Status = "rendering"
	StatusComplete         Status = "complete"
	StatusError            Status = "error"
)

const (
	SourceTypeUpload     = "upload"
	SourceTypeYouTubeURL = "youtube_url"
)

// Session is one end-to-end workflow instance, from input to rendered clips.
// Highlight identity is positional: a highlight is referenced by its index in
// Highlights, removal is a tombstone in RemovedIndexes, and edit/regenerate
// replace in place so indices held by a client stay valid.
type Session struct {
	ID              string      `json:"id"`
	Status          Status      `json:"status"`
	Input           *InputMeta  `json:"input,omitempty"`
	Transcript      *Transcript `json:"transcript,omitempty"`
	Highlights      []Highlight `json:"highlights"`
	ApprovedIndexes []int       `json:"approved_highlight_indexes"`
	RemovedIndexes  []int       `json:"removed_highlight_indexes"`
	Outputs         []Output    `json:"outputs,omitempty"`
	Error           string      `json:"error,omitempty"`
	Progress        int         `json:"progress"`
	Stage           string      `json:"stage,omitempty"`
	Version         int64       `json:"-"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// InputMeta describes the source video once the input collaborator has
// accepted it. Set once; immutable thereafter.
type InputMeta struct {
	SourceType      string  `json:"source_type"`
	Ref             string  `json:"ref,omitempty"`
	DisplayName     string  `json:"display_name,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	SizeBytes       int64   `json:"size_bytes,omitempty"`
}

// Transcript is produced wholesale by the transcription collaborator and is
// read-only afterwards.
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Highlight is a candidate clip range within the source video.
type Highlight struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Content string  `json:"content"`
	Title   string  `json:"title,omitempty"`
}

// Output is one rendered clip file, referencing its highlight by position.
type Output struct {
	Filename       string `json:"filename"`
	HighlightIndex int    `json:"highlight_index"`
}

func New() *Session {
	now := time.Now().UTC()
	return &Session{
		ID:              uuid.NewString(),
		Status:          StatusCreated,
		Highlights:      []Highlight{},
		ApprovedIndexes: []int{},
		RemovedIndexes:  []int{},
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
