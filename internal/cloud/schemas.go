package cloud

import "github.com/clipforge/clipforge-agent/internal/session"

// InputRef points at the source video before import: either an object-storage
// upload id or a YouTube URL.
type InputRef struct {
	SourceType  string `json:"source_type"`
	UploadID    string `json:"upload_id,omitempty"`
	URL         string `json:"url,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Language    string `json:"language,omitempty"`
}

// JobHandle is an opaque reference to an asynchronous transcription job.
type JobHandle struct {
	JobID string `json:"job_id"`
}

const (
	JobStateQueued     = "queued"
	JobStateProcessing = "processing"
	JobStateCompleted  = "completed"
	JobStateFailed     = "failed"
)

// TranscriptionStatus is one observation of a transcription job.
type TranscriptionStatus struct {
	State      string              `json:"state"`
	Progress   int                 `json:"progress"`
	Stage      string              `json:"stage,omitempty"`
	Transcript *session.Transcript `json:"transcript,omitempty"`
	Message    string              `json:"message,omitempty"`
}

// Range is a plain time span, used for selection exclusion lists.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SelectionRequest asks the highlight-selection collaborator for ranked clip
// candidates. ExcludeRanges keeps a single-clip regeneration away from
// moments the user already has.
type SelectionRequest struct {
	Segments        []session.Segment `json:"segments"`
	DurationSeconds float64           `json:"duration_seconds"`
	Language        string            `json:"language,omitempty"`
	Instructions    string            `json:"instructions,omitempty"`
	MaxHighlights   int               `json:"max_highlights"`
	ExcludeRanges   []Range           `json:"exclude_ranges,omitempty"`
}

type selectionResponse struct {
	Highlights []session.Highlight `json:"highlights"`
}

// RenderClip is one approved range sent to the render collaborator.
type RenderClip struct {
	Index int     `json:"highlight_index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Title string  `json:"title,omitempty"`
}

// RenderResult is one produced clip file.
type RenderResult struct {
	Index    int    `json:"highlight_index"`
	Filename string `json:"filename"`
}

type renderRequest struct {
	SessionID string       `json:"session_id"`
	Clips     []RenderClip `json:"clips"`
}

type renderResponse struct {
	Outputs []RenderResult `json:"outputs"`
}

type startTranscriptionRequest struct {
	SessionID string `json:"session_id"`
	MediaRef  string `json:"media_ref"`
	Language  string `json:"language,omitempty"`
}
