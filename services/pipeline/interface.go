package pipeline

import (
	"context"

	"vidscribe/media"
	"vidscribe/models"
)

// Service is the transcription pipeline entrypoint used by the HTTP layer.
type Service interface {
	Transcribe(ctx context.Context, url string) (*models.TranscriptionResult, error)
}

// Acquirer downloads and normalizes a video's audio track. Satisfied by
// media.Acquirer.
type Acquirer interface {
	Acquire(ctx context.Context, videoID string) (*media.AudioAsset, error)
	Probe(ctx context.Context, path string) float64
}

// Transcriber runs the remote provider end to end for a single audio file,
// chapters and summary included. Satisfied by provider.Client.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (models.RawTranscript, error)
}

// Segmenter handles long audio by slicing, fanning out, and merging.
// Satisfied by segmenter.Processor.
type Segmenter interface {
	Process(ctx context.Context, asset *media.AudioAsset) (models.RawTranscript, error)
}

// Enricher rewrites chapters and summary with a language model. It may be
// disabled, and it never fails: on any error it falls back to its inputs.
type Enricher interface {
	Enabled() bool
	Enhance(ctx context.Context, transcript string, priorChapters []models.Chapter, priorSummary string) (string, []models.Chapter)
}

// Cache is the two-tier result cache. Satisfied by cache.Cache.
type Cache interface {
	Get(ctx context.Context, videoID string) (models.TranscriptionResult, bool)
	Put(ctx context.Context, videoID string, result models.TranscriptionResult)
}
