package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"vidscribe/models"
	"vidscribe/validation"
)

// Pipeline stages, logged as each boundary is crossed.
const (
	stageIdle         = "IDLE"
	stageAcquiring    = "ACQUIRING"
	stageTranscribing = "TRANSCRIBING"
	stageEnriching    = "ENRICHING"
	stageCaching      = "CACHING"
	stageDone         = "DONE"
)

const (
	placeholderTranscript = "Transcription unavailable for this video. The audio could not be processed."
	placeholderSummary    = "Summary unavailable."
	catchAllChapterTitle  = "Full Content"
)

type Config struct {
	// SegmentThresholdSeconds routes audio longer than this to the
	// segmenting processor. Zero disables segmentation entirely.
	SegmentThresholdSeconds float64
}

type service struct {
	validator   *validation.Validator
	acquirer    Acquirer
	transcriber Transcriber
	segmenter   Segmenter
	enricher    Enricher
	cache       Cache
	config      Config
	logger      zerolog.Logger
}

func NewService(
	validator *validation.Validator,
	acquirer Acquirer,
	transcriber Transcriber,
	segmenter Segmenter,
	enricher Enricher,
	cache Cache,
	config Config,
	logger zerolog.Logger,
) Service {
	return &service{
		validator:   validator,
		acquirer:    acquirer,
		transcriber: transcriber,
		segmenter:   segmenter,
		enricher:    enricher,
		cache:       cache,
		config:      config,
		logger:      logger.With().Str("component", "pipeline").Logger(),
	}
}

// Transcribe runs the full pipeline for one video URL. The only error it
// ever returns is a bad reference; every downstream failure degrades into
// a placeholder result rather than failing the request.
func (s *service) Transcribe(ctx context.Context, url string) (*models.TranscriptionResult, error) {
	const op = "PipelineService.Transcribe"

	ref, err := s.validator.Resolve(url)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With().
		Str("operation", op).
		Str("video_id", ref.ID).
		Logger()
	logger.Info().Str("stage", stageIdle).Msg("Transcription request received")

	if cached, ok := s.cache.Get(ctx, ref.ID); ok {
		logger.Info().Msg("Serving cached transcription")
		return &cached, nil
	}

	raw, ok := s.produce(ctx, logger, ref)

	var result models.TranscriptionResult
	if ok {
		result = s.enrichAndFinalize(ctx, logger, raw)
	} else {
		result = placeholderResult()
	}

	logger.Info().Str("stage", stageCaching).Msg("Writing result to cache")
	s.cache.Put(ctx, ref.ID, result)

	logger.Info().Str("stage", stageDone).Msg("Transcription request complete")
	return &result, nil
}

// produce covers the ACQUIRING and TRANSCRIBING stages. A false return
// means the caller should substitute the placeholder result.
func (s *service) produce(ctx context.Context, logger zerolog.Logger, ref models.VideoReference) (models.RawTranscript, bool) {
	logger.Info().Str("stage", stageAcquiring).Msg("Acquiring audio")

	asset, err := s.acquirer.Acquire(ctx, ref.ID)
	if err != nil {
		logger.Error().Err(err).Msg("Audio acquisition failed, substituting placeholder")
		return models.RawTranscript{}, false
	}
	defer func() {
		if err := asset.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove audio asset")
		}
	}()

	logger.Info().Str("stage", stageTranscribing).
		Float64("duration_seconds", asset.DurationSeconds).
		Msg("Transcribing audio")

	var raw models.RawTranscript
	if s.shouldSegment(asset.DurationSeconds) {
		raw, err = s.segmenter.Process(ctx, asset)
	} else {
		raw, err = s.transcriber.Transcribe(ctx, asset.Path)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Transcription failed, substituting placeholder")
		return models.RawTranscript{}, false
	}
	if strings.TrimSpace(raw.Text) == "" {
		logger.Warn().Msg("Provider returned empty transcript, substituting placeholder")
		return models.RawTranscript{}, false
	}
	return raw, true
}

// shouldSegment routes by probed duration. An unknown duration (probe
// failure reports zero) takes the single-pass path.
func (s *service) shouldSegment(durationSeconds float64) bool {
	if s.config.SegmentThresholdSeconds <= 0 {
		return false
	}
	return durationSeconds > s.config.SegmentThresholdSeconds
}

// enrichAndFinalize covers the ENRICHING stage and the never-empty result
// contract. Enrichment is best effort; finalize guarantees every field.
func (s *service) enrichAndFinalize(ctx context.Context, logger zerolog.Logger, raw models.RawTranscript) models.TranscriptionResult {
	chapters := convertChapters(raw.Chapters)
	summary := raw.Summary

	if s.enricher != nil && s.enricher.Enabled() {
		logger.Info().Str("stage", stageEnriching).Msg("Enriching transcription")
		summary, chapters = s.enricher.Enhance(ctx, raw.Text, chapters, summary)
	}

	return finalize(raw.Text, chapters, summary)
}

// convertChapters maps provider chapter boundaries onto the response shape.
func convertChapters(raw []models.RawChapter) []models.Chapter {
	if len(raw) == 0 {
		return nil
	}
	chapters := make([]models.Chapter, 0, len(raw))
	for _, ch := range raw {
		title := ch.Headline
		if title == "" {
			title = catchAllChapterTitle
		}
		chapters = append(chapters, models.Chapter{
			Title:     title,
			StartTime: models.FormatTimestamp(ch.StartMs),
			Content:   ch.Summary,
		})
	}
	return chapters
}

// finalize enforces the non-empty contract on every field and normalizes
// chapter identity and order.
func finalize(text string, chapters []models.Chapter, summary string) models.TranscriptionResult {
	if len(chapters) == 0 {
		chapters = []models.Chapter{catchAllChapter(text)}
	}
	models.SortChapters(chapters)
	models.EnsureChapterIDs(chapters)

	if strings.TrimSpace(summary) == "" {
		summary = synthesizeSummary(text)
	}

	return models.TranscriptionResult{
		Transcription: text,
		Chapters:      chapters,
		Summary:       summary,
	}
}

func catchAllChapter(text string) models.Chapter {
	content := text
	if len(content) > 500 {
		content = content[:500]
	}
	return models.Chapter{
		Title:     catchAllChapterTitle,
		StartTime: "0:00",
		Content:   content,
	}
}

// synthesizeSummary trims the transcript head into a stand-in summary when
// neither the provider nor the enricher produced one.
func synthesizeSummary(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return placeholderSummary
	}
	if len(text) <= 200 {
		return text
	}
	cut := text[:200]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

func placeholderResult() models.TranscriptionResult {
	return models.TranscriptionResult{
		Transcription: placeholderTranscript,
		Chapters: []models.Chapter{{
			ID:        "chapter-1",
			Title:     catchAllChapterTitle,
			StartTime: "0:00",
			Content:   placeholderTranscript,
		}},
		Summary: placeholderSummary,
	}
}
