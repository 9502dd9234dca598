package provider

import "vidscribe/models"

// State is the provider-side lifecycle of a transcription job.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Terminal reports whether no further status changes can occur.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// JobStatus is the typed view of one provider status observation. Both the
// polling loop and the webhook flow produce these, so the orchestrator sees
// a single "await terminal status" operation regardless of transport.
type JobStatus struct {
	JobID    string
	State    State
	Text     string
	Chapters []models.RawChapter
	Summary  string
	Words    []models.TranscriptWord
	Reason   string
}

// Options configures a transcription job.
type Options struct {
	AutoChapters bool
	Language     string
	SpeedProfile string // "fast" or "accurate"

	WebhookURL        string
	WebhookAuthHeader string
	WebhookAuthValue  string
}

// Wire types for the provider REST protocol.

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type createJobRequest struct {
	AudioURL     string `json:"audio_url"`
	AutoChapters bool   `json:"auto_chapters,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	SpeechModel  string `json:"speech_model,omitempty"`

	WebhookURL             string `json:"webhook_url,omitempty"`
	WebhookAuthHeaderName  string `json:"webhook_auth_header_name,omitempty"`
	WebhookAuthHeaderValue string `json:"webhook_auth_header_value,omitempty"`

	Summarization bool   `json:"summarization,omitempty"`
	SummaryType   string `json:"summary_type,omitempty"`
	SummaryModel  string `json:"summary_model,omitempty"`
}

type wireChapter struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
}

type wireWord struct {
	Text  string `json:"text"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

type jobResponse struct {
	ID       string        `json:"id"`
	Status   string        `json:"status"`
	Text     string        `json:"text"`
	Chapters []wireChapter `json:"chapters"`
	Summary  string        `json:"summary"`
	Words    []wireWord    `json:"words"`
	Error    string        `json:"error"`
}

func (r *jobResponse) toStatus() JobStatus {
	st := JobStatus{
		JobID:   r.ID,
		Summary: r.Summary,
		Text:    r.Text,
		Reason:  r.Error,
	}

	switch r.Status {
	case "queued":
		st.State = StateQueued
	case "processing":
		st.State = StateProcessing
	case "completed":
		st.State = StateCompleted
	case "error":
		st.State = StateError
	default:
		st.State = StateProcessing
	}

	for _, ch := range r.Chapters {
		st.Chapters = append(st.Chapters, models.RawChapter{
			Headline: ch.Headline,
			Summary:  ch.Summary,
			StartMs:  ch.Start,
			EndMs:    ch.End,
		})
	}
	for _, w := range r.Words {
		st.Words = append(st.Words, models.TranscriptWord{
			Text:    w.Text,
			StartMs: w.Start,
			EndMs:   w.End,
		})
	}
	return st
}

// toTranscript converts a completed status into the pipeline's raw
// transcript form.
func (s JobStatus) toTranscript() models.RawTranscript {
	return models.RawTranscript{
		Text:     s.Text,
		Chapters: s.Chapters,
		Summary:  s.Summary,
		Words:    s.Words,
	}
}
