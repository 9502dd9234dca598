package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"vidscribe/errors"
	"vidscribe/media"
	"vidscribe/models"
	"vidscribe/validation"
)

type fakeAcquirer struct {
	t        *testing.T
	duration float64
	fail     bool
	asset    *media.AudioAsset
	calls    int
}

func (f *fakeAcquirer) Acquire(ctx context.Context, videoID string) (*media.AudioAsset, error) {
	f.calls++
	if f.fail {
		return nil, errors.Acquisition("fakeAcquirer.Acquire", stderrors.New("download failed"), "download failed")
	}
	path := filepath.Join(f.t.TempDir(), videoID+".m4a")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		f.t.Fatalf("write fake asset: %v", err)
	}
	f.asset = &media.AudioAsset{
		VideoID:         videoID,
		Path:            path,
		DurationSeconds: f.duration,
		Format:          "m4a",
	}
	return f.asset, nil
}

func (f *fakeAcquirer) Probe(ctx context.Context, path string) float64 { return f.duration }

type fakeTranscriber struct {
	raw   models.RawTranscript
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath string) (models.RawTranscript, error) {
	f.calls++
	return f.raw, f.err
}

type fakeSegmenter struct {
	raw   models.RawTranscript
	err   error
	calls int
}

func (f *fakeSegmenter) Process(ctx context.Context, asset *media.AudioAsset) (models.RawTranscript, error) {
	f.calls++
	return f.raw, f.err
}

type fakeEnricher struct {
	enabled  bool
	summary  string
	chapters []models.Chapter
	calls    int
}

func (f *fakeEnricher) Enabled() bool { return f.enabled }

func (f *fakeEnricher) Enhance(ctx context.Context, transcript string, priorChapters []models.Chapter, priorSummary string) (string, []models.Chapter) {
	f.calls++
	return f.summary, f.chapters
}

type fakeCache struct {
	entries map[string]models.TranscriptionResult
	puts    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]models.TranscriptionResult)}
}

func (f *fakeCache) Get(ctx context.Context, videoID string) (models.TranscriptionResult, bool) {
	r, ok := f.entries[videoID]
	return r, ok
}

func (f *fakeCache) Put(ctx context.Context, videoID string, result models.TranscriptionResult) {
	f.puts++
	f.entries[videoID] = result
}

type deps struct {
	acquirer    *fakeAcquirer
	transcriber *fakeTranscriber
	segmenter   *fakeSegmenter
	enricher    *fakeEnricher
	cache       *fakeCache
}

func newTestService(t *testing.T, d deps) Service {
	if d.acquirer == nil {
		d.acquirer = &fakeAcquirer{t: t, duration: 60}
	}
	d.acquirer.t = t
	if d.transcriber == nil {
		d.transcriber = &fakeTranscriber{}
	}
	if d.segmenter == nil {
		d.segmenter = &fakeSegmenter{}
	}
	if d.enricher == nil {
		d.enricher = &fakeEnricher{}
	}
	if d.cache == nil {
		d.cache = newFakeCache()
	}
	return NewService(
		validation.NewValidator(),
		d.acquirer,
		d.transcriber,
		d.segmenter,
		d.enricher,
		d.cache,
		Config{SegmentThresholdSeconds: 900},
		zerolog.Nop(),
	)
}

func TestTranscribeEndToEnd(t *testing.T) {
	d := deps{
		acquirer:    &fakeAcquirer{duration: 60},
		transcriber: &fakeTranscriber{raw: models.RawTranscript{Text: "hello world"}},
		cache:       newFakeCache(),
	}
	svc := newTestService(t, d)

	result, err := svc.Transcribe(context.Background(), "https://youtu.be/abc12345678")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Transcription != "hello world" {
		t.Errorf("Transcription = %q, want %q", result.Transcription, "hello world")
	}
	if len(result.Chapters) != 1 {
		t.Fatalf("got %d chapters, want 1", len(result.Chapters))
	}
	ch := result.Chapters[0]
	if ch.Title != "Full Content" || ch.StartTime != "0:00" {
		t.Errorf("chapter = %+v, want Full Content at 0:00", ch)
	}
	if ch.ID == "" {
		t.Error("chapter id should be populated")
	}
	if result.Summary == "" {
		t.Error("summary should never be empty")
	}

	// A repeat within the TTL is served from cache without touching the
	// provider again.
	again, err := svc.Transcribe(context.Background(), "https://youtu.be/abc12345678")
	if err != nil {
		t.Fatalf("Transcribe (cached): %v", err)
	}
	if again.Transcription != result.Transcription {
		t.Error("cached result should match the original")
	}
	if d.transcriber.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", d.transcriber.calls)
	}
	if d.acquirer.calls != 1 {
		t.Errorf("acquirer calls = %d, want 1", d.acquirer.calls)
	}
}

func TestTranscribeInvalidURL(t *testing.T) {
	svc := newTestService(t, deps{})

	_, err := svc.Transcribe(context.Background(), "https://example.com/watch?v=abc12345678")
	if err == nil {
		t.Fatal("expected error for non-YouTube URL")
	}
	if !errors.Is(err, errors.KindInvalidReference) {
		t.Errorf("error kind = %v, want invalid reference", err)
	}
}

func TestTranscribeAcquisitionFailureYieldsPlaceholder(t *testing.T) {
	d := deps{
		acquirer: &fakeAcquirer{fail: true},
		cache:    newFakeCache(),
	}
	svc := newTestService(t, d)

	result, err := svc.Transcribe(context.Background(), "https://youtu.be/abc12345678")
	if err != nil {
		t.Fatalf("Transcribe should absorb acquisition failures, got %v", err)
	}
	if result.Transcription == "" || result.Summary == "" || len(result.Chapters) == 0 {
		t.Errorf("placeholder result has empty fields: %+v", result)
	}
	if d.cache.puts != 1 {
		t.Errorf("cache puts = %d, placeholder should be cached", d.cache.puts)
	}
}

func TestTranscribeProviderFailureYieldsPlaceholder(t *testing.T) {
	d := deps{
		transcriber: &fakeTranscriber{err: errors.Transcription("fake", stderrors.New("boom"), "provider down")},
	}
	svc := newTestService(t, d)

	result, err := svc.Transcribe(context.Background(), "https://youtu.be/abc12345678")
	if err != nil {
		t.Fatalf("Transcribe should absorb provider failures, got %v", err)
	}
	if result.Transcription == "" || len(result.Chapters) == 0 {
		t.Errorf("placeholder result has empty fields: %+v", result)
	}
}

func TestTranscribeEmptyTranscriptYieldsPlaceholder(t *testing.T) {
	d := deps{
		transcriber: &fakeTranscriber{raw: models.RawTranscript{Text: "   "}},
	}
	svc := newTestService(t, d)

	result, err := svc.Transcribe(context.Background(), "https://youtu.be/abc12345678")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if result.Transcription == "" {
		t.Error("placeholder transcription should be non-empty")
	}
}

func TestTranscribeRoutesLongAudioToSegmenter(t *testing.T) {
	d := deps{
		acquirer:    &fakeAcquirer{duration: 1800},
		transcriber: &fakeTranscriber{raw: models.RawTranscript{Text: "single"}},
		segmenter:   &fakeSegmenter{raw: models.RawTranscript{Text: "segmented"}},
	}
	svc := newTestService(t, d)

	result, err := svc.Transcribe(context.Background(), "https://youtu.be/abc12345678")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if d.segmenter.calls != 1 {
		t.Errorf("segmenter calls = %d, want 1", d.segmenter.calls)
	}
	if d.transcriber.calls != 0 {
		t.Errorf("transcriber calls = %d, want 0", d.transcriber.calls)
	}
	if result.Transcription != "segmented" {
		t.Errorf("Transcription = %q, want %q", result.Transcription, "segmented")
	}
}

func TestTranscribeUnknownDurationTakesSinglePass(t *testing.T) {
	d := deps{
		acquirer:    &fakeAcquirer{duration: 0},
		transcriber: &fakeTranscriber{raw: models.RawTranscript{Text: "single"}},
		segmenter:   &fakeSegmenter{},
	}
	svc := newTestService(t, d)

	if _, err := svc.Transcribe(context.Background(), "https://youtu.be/abc12345678"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if d.segmenter.calls != 0 {
		t.Errorf("segmenter calls = %d, want 0 for unknown duration", d.segmenter.calls)
	}
	if d.transcriber.calls != 1 {
		t.Errorf("transcriber calls = %d, want 1", d.transcriber.calls)
	}
}

func TestTranscribeEnrichesWhenEnabled(t *testing.T) {
	d := deps{
		transcriber: &fakeTranscriber{raw: models.RawTranscript{
			Text: "the full transcript",
			Chapters: []models.RawChapter{
				{Headline: "Provider Chapter", StartMs: 0, Summary: "from provider"},
			},
			Summary: "provider summary",
		}},
		enricher: &fakeEnricher{
			enabled: true,
			summary: "enriched summary",
			chapters: []models.Chapter{
				{Title: "Enriched Intro", StartTime: "0:00", Content: "better"},
				{Title: "Enriched Middle", StartTime: "1:30", Content: "deeper"},
			},
		},
	}
	svc := newTestService(t, d)

	result, err := svc.Transcribe(context.Background(), "https://youtu.be/abc12345678")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if d.enricher.calls != 1 {
		t.Fatalf("enricher calls = %d, want 1", d.enricher.calls)
	}
	if result.Summary != "enriched summary" {
		t.Errorf("Summary = %q, want enriched summary", result.Summary)
	}
	if len(result.Chapters) != 2 || result.Chapters[0].Title != "Enriched Intro" {
		t.Errorf("Chapters = %+v, want enriched chapters in order", result.Chapters)
	}
	for i, ch := range result.Chapters {
		if ch.ID == "" {
			t.Errorf("chapter %d missing id", i)
		}
	}
}

func TestTranscribeConvertsProviderChapters(t *testing.T) {
	d := deps{
		transcriber: &fakeTranscriber{raw: models.RawTranscript{
			Text: "the full transcript",
			Chapters: []models.RawChapter{
				{Headline: "Opening", StartMs: 0, Summary: "intro section"},
				{Headline: "Closing", StartMs: 95000, Summary: "outro section"},
			},
		}},
	}
	svc := newTestService(t, d)

	result, err := svc.Transcribe(context.Background(), "https://youtu.be/abc12345678")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(result.Chapters) != 2 {
		t.Fatalf("got %d chapters, want 2", len(result.Chapters))
	}
	if result.Chapters[1].StartTime != "1:35" {
		t.Errorf("StartTime = %q, want 1:35", result.Chapters[1].StartTime)
	}
	if result.Chapters[0].Content != "intro section" {
		t.Errorf("Content = %q, want provider chapter summary", result.Chapters[0].Content)
	}
}

func TestTranscribeReleasesAudioAsset(t *testing.T) {
	d := deps{
		acquirer:    &fakeAcquirer{duration: 60},
		transcriber: &fakeTranscriber{raw: models.RawTranscript{Text: "ok"}},
	}
	svc := newTestService(t, d)

	if _, err := svc.Transcribe(context.Background(), "https://youtu.be/abc12345678"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if _, err := os.Stat(d.acquirer.asset.Path); !os.IsNotExist(err) {
		t.Error("audio asset should be removed after the pipeline run")
	}
}
