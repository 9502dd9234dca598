package models

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// VideoReference identifies a source video. Two references with the same ID
// resolve to the same cache entry regardless of which URL form produced them.
type VideoReference struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Chapter is one entry in a transcription's chapter list. StartTime uses the
// "M:SS" display format.
type Chapter struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartTime string `json:"startTime"`
	Content   string `json:"content"`
}

// TranscriptionResult is the unit stored in the cache and returned to
// callers. Every field is guaranteed non-empty once the pipeline finalizes
// it; degraded results carry placeholder content, never missing fields.
type TranscriptionResult struct {
	Transcription string    `json:"transcription"`
	Chapters      []Chapter `json:"chapters"`
	Summary       string    `json:"summary"`
}

// TranscriptWord is a single word-level entry with millisecond timestamps.
type TranscriptWord struct {
	Text    string `json:"text"`
	StartMs int64  `json:"startMs"`
	EndMs   int64  `json:"endMs"`
}

// RawChapter is a chapter boundary as reported by the speech provider,
// before conversion to display form.
type RawChapter struct {
	Headline string `json:"headline"`
	StartMs  int64  `json:"startMs"`
	EndMs    int64  `json:"endMs"`
	Summary  string `json:"summary"`
}

// RawTranscript is the provider-side transcription output consumed by the
// enrichment stage and the orchestrator.
type RawTranscript struct {
	Text     string           `json:"text"`
	Chapters []RawChapter     `json:"chapters,omitempty"`
	Summary  string           `json:"summary,omitempty"`
	Words    []TranscriptWord `json:"words,omitempty"`
}

var startTimePattern = regexp.MustCompile(`^(\d+):(\d{2})$`)

// ParseStartTime converts an "M:SS" timestamp to whole seconds.
func ParseStartTime(s string) (int, error) {
	m := startTimePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	minutes, _ := strconv.Atoi(m[1])
	seconds, _ := strconv.Atoi(m[2])
	if seconds > 59 {
		return 0, fmt.Errorf("invalid seconds in timestamp %q", s)
	}
	return minutes*60 + seconds, nil
}

// FormatTimestamp renders a millisecond offset as "M:SS".
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// SortChapters orders chapters by parsed start time ascending. Provider and
// model output order is not guaranteed, so callers re-sort before returning
// results. Unparseable timestamps sort as 0:00.
func SortChapters(chapters []Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		a, _ := ParseStartTime(chapters[i].StartTime)
		b, _ := ParseStartTime(chapters[j].StartTime)
		return a < b
	})
}

// EnsureChapterIDs assigns sequential unique ids to any chapters missing one
// or colliding with an earlier id.
func EnsureChapterIDs(chapters []Chapter) {
	seen := make(map[string]struct{}, len(chapters))
	for i := range chapters {
		id := chapters[i].ID
		if _, dup := seen[id]; id == "" || dup {
			id = fmt.Sprintf("chapter-%d", i+1)
			chapters[i].ID = id
		}
		seen[id] = struct{}{}
	}
}

// EmbedURL converts a video id to the embeddable player URL.
func EmbedURL(videoID string) string {
	return "https://www.youtube.com/embed/" + videoID
}

// ThumbnailURL returns the standard thumbnail for a video id.
func ThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", videoID)
}

// TranscribeRequest is the inbound payload for POST /transcribe.
type TranscribeRequest struct {
	VideoURL string `json:"videoUrl"`
}

// TranscribeResponse is the outbound payload for POST /transcribe.
type TranscribeResponse struct {
	Success       bool      `json:"success"`
	VideoID       string    `json:"videoId,omitempty"`
	EmbedURL      string    `json:"embedUrl,omitempty"`
	ThumbnailURL  string    `json:"thumbnailUrl,omitempty"`
	Transcription string    `json:"transcription"`
	Chapters      []Chapter `json:"chapters"`
	Summary       string    `json:"summary"`
}

// NewTranscribeResponse builds the API response from a pipeline result,
// attaching player metadata when the video id is known.
func NewTranscribeResponse(videoID string, r *TranscriptionResult) *TranscribeResponse {
	resp := &TranscribeResponse{
		Success:       true,
		Transcription: r.Transcription,
		Chapters:      r.Chapters,
		Summary:       r.Summary,
	}
	if videoID != "" {
		resp.VideoID = videoID
		resp.EmbedURL = EmbedURL(videoID)
		resp.ThumbnailURL = ThumbnailURL(videoID)
	}
	return resp
}

// WebhookNotification is the provider push payload for job completion.
type WebhookNotification struct {
	TranscriptID string `json:"transcript_id"`
	Status       string `json:"status"`
}
