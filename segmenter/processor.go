package segmenter

import (
	"context"
	"math"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"vidscribe/media"
	"vidscribe/models"
)

// Transcriber transcribes one local segment file. Satisfied by the provider
// client's polling-only path.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string) (models.RawTranscript, error)
}

// Slicer cuts a contiguous piece out of an audio asset. Satisfied by
// media.Acquirer.
type Slicer interface {
	Slice(ctx context.Context, asset *media.AudioAsset, index int, startSec, durationSec float64) (string, error)
}

// segmentSeparator joins segment texts in the merged transcript.
const segmentSeparator = "\n\n"

type Config struct {
	// SegmentSeconds is the fixed slice duration. Word timestamps are
	// re-offset by index*SegmentSeconds*1000 during the merge.
	SegmentSeconds float64
}

// Processor fans a long audio asset out into fixed-duration segments,
// transcribes them concurrently, and merges the results back into a single
// global timeline.
type Processor struct {
	transcriber Transcriber
	slicer      Slicer
	config      Config
	logger      zerolog.Logger
}

func NewProcessor(transcriber Transcriber, slicer Slicer, cfg Config, logger zerolog.Logger) *Processor {
	if cfg.SegmentSeconds <= 0 {
		cfg.SegmentSeconds = 300
	}
	return &Processor{
		transcriber: transcriber,
		slicer:      slicer,
		config:      cfg,
		logger:      logger.With().Str("component", "segmenter").Logger(),
	}
}

// Process slices the asset, transcribes every slice concurrently, and
// merges by original index. Any single segment failure fails the whole
// batch; partial merges are never produced. Segment files are removed on
// every path.
func (p *Processor) Process(ctx context.Context, asset *media.AudioAsset) (models.RawTranscript, error) {
	const op = "SegmentProcessor.Process"
	logger := p.logger.With().Str("operation", op).Str("video_id", asset.VideoID).Logger()

	count := int(math.Ceil(asset.DurationSeconds / p.config.SegmentSeconds))
	if count < 1 {
		count = 1
	}
	logger.Info().
		Float64("duration_seconds", asset.DurationSeconds).
		Int("segments", count).
		Msg("Starting parallel segment transcription")

	paths := make([]string, 0, count)
	defer func() {
		for _, path := range paths {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Warn().Err(err).Str("path", path).Msg("Failed to remove segment file")
			}
		}
	}()

	for i := 0; i < count; i++ {
		start := float64(i) * p.config.SegmentSeconds
		duration := p.config.SegmentSeconds
		if remaining := asset.DurationSeconds - start; remaining < duration && remaining > 0 {
			duration = remaining
		}
		path, err := p.slicer.Slice(ctx, asset, i, start, duration)
		if err != nil {
			return models.RawTranscript{}, err
		}
		paths = append(paths, path)
	}

	// Fan-out: every segment is independent and dispatched concurrently.
	// The group context cancels the rest as soon as one fails.
	results := make([]models.RawTranscript, count)
	g, gctx := errgroup.WithContext(ctx)
	for i := range paths {
		i := i
		g.Go(func() error {
			raw, err := p.transcriber.TranscribeFile(gctx, paths[i])
			if err != nil {
				return err
			}
			results[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Segment batch failed")
		return models.RawTranscript{}, err
	}

	merged := p.merge(results)
	logger.Info().
		Int("chapters", len(merged.Chapters)).
		Int("words", len(merged.Words)).
		Msg("Segment merge complete")
	return merged, nil
}

// merge reassembles segment results strictly by original index, offsetting
// every word timestamp into the global timeline.
func (p *Processor) merge(results []models.RawTranscript) models.RawTranscript {
	offsetMs := int64(p.config.SegmentSeconds * 1000)

	texts := make([]string, 0, len(results))
	var words []models.TranscriptWord
	for i, r := range results {
		texts = append(texts, strings.TrimSpace(r.Text))
		base := int64(i) * offsetMs
		for _, w := range r.Words {
			words = append(words, models.TranscriptWord{
				Text:    w.Text,
				StartMs: w.StartMs + base,
				EndMs:   w.EndMs + base,
			})
		}
	}

	return models.RawTranscript{
		Text:     strings.Join(texts, segmentSeparator),
		Words:    words,
		Chapters: deriveChapters(words, len(results)),
	}
}
