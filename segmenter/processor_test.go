package segmenter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vidscribe/media"
	"vidscribe/models"
)

// fakeSlicer writes real temp files so cleanup behavior is observable.
type fakeSlicer struct {
	dir   string
	paths []string
}

func (f *fakeSlicer) Slice(ctx context.Context, asset *media.AudioAsset, index int, startSec, durationSec float64) (string, error) {
	path := filepath.Join(f.dir, fmt.Sprintf("%s.seg%d.m4a", asset.VideoID, index))
	if err := os.WriteFile(path, []byte("segment"), 0644); err != nil {
		return "", err
	}
	f.paths = append(f.paths, path)
	return path, nil
}

// fakeTranscriber returns a canned transcript per segment index, optionally
// delaying some segments so completion order differs from dispatch order.
type fakeTranscriber struct {
	mu       sync.Mutex
	byIndex  map[int]models.RawTranscript
	delays   map[int]time.Duration
	failIdx  int // -1 disables
	dispatch []int
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{
		byIndex: make(map[int]models.RawTranscript),
		delays:  make(map[int]time.Duration),
		failIdx: -1,
	}
}

func segIndex(path string) int {
	var idx int
	base := filepath.Base(path)
	fmt.Sscanf(base[strings.Index(base, ".seg")+4:], "%d", &idx)
	return idx
}

func (f *fakeTranscriber) TranscribeFile(ctx context.Context, path string) (models.RawTranscript, error) {
	idx := segIndex(path)

	f.mu.Lock()
	f.dispatch = append(f.dispatch, idx)
	delay := f.delays[idx]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return models.RawTranscript{}, ctx.Err()
		}
	}

	if idx == f.failIdx {
		return models.RawTranscript{}, fmt.Errorf("segment %d: provider failure", idx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byIndex[idx], nil
}

func newTestProcessor(t *testing.T, tr Transcriber) (*Processor, *fakeSlicer) {
	t.Helper()
	slicer := &fakeSlicer{dir: t.TempDir()}
	p := NewProcessor(tr, slicer, Config{SegmentSeconds: 300}, zerolog.Nop())
	return p, slicer
}

func longAsset(duration float64) *media.AudioAsset {
	return &media.AudioAsset{VideoID: "abc12345678", Path: "/tmp/abc12345678.m4a", DurationSeconds: duration}
}

func TestProcessMergesByIndexNotCompletionOrder(t *testing.T) {
	tr := newFakeTranscriber()
	tr.byIndex[0] = models.RawTranscript{
		Text:  "first segment",
		Words: []models.TranscriptWord{{Text: "first", StartMs: 0, EndMs: 500}},
	}
	tr.byIndex[1] = models.RawTranscript{
		Text:  "second segment",
		Words: []models.TranscriptWord{{Text: "second", StartMs: 100, EndMs: 600}},
	}
	tr.byIndex[2] = models.RawTranscript{
		Text:  "third segment",
		Words: []models.TranscriptWord{{Text: "third", StartMs: 200, EndMs: 700}},
	}
	// S2 completes first, S0 last
	tr.delays[0] = 60 * time.Millisecond
	tr.delays[1] = 30 * time.Millisecond

	p, _ := newTestProcessor(t, tr)
	merged, err := p.Process(context.Background(), longAsset(900))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	want := "first segment\n\nsecond segment\n\nthird segment"
	if merged.Text != want {
		t.Errorf("merged text out of order:\ngot  %q\nwant %q", merged.Text, want)
	}

	// Word timestamps re-offset by index * 300000 ms
	if merged.Words[0].StartMs != 0 {
		t.Errorf("segment 0 word offset = %d, want 0", merged.Words[0].StartMs)
	}
	if merged.Words[1].StartMs != 300100 {
		t.Errorf("segment 1 word offset = %d, want 300100", merged.Words[1].StartMs)
	}
	if merged.Words[2].StartMs != 600200 {
		t.Errorf("segment 2 word offset = %d, want 600200", merged.Words[2].StartMs)
	}
}

func TestProcessDispatchesConcurrently(t *testing.T) {
	tr := newFakeTranscriber()
	for i := 0; i < 4; i++ {
		tr.byIndex[i] = models.RawTranscript{Text: fmt.Sprintf("seg %d", i)}
		tr.delays[i] = 50 * time.Millisecond
	}

	p, _ := newTestProcessor(t, tr)
	start := time.Now()
	if _, err := p.Process(context.Background(), longAsset(1200)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// Sequential execution would take >= 200ms; concurrent execution
	// should finish close to a single segment's latency.
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("segments appear to run sequentially: took %s", elapsed)
	}
}

func TestProcessFailFast(t *testing.T) {
	tr := newFakeTranscriber()
	tr.byIndex[0] = models.RawTranscript{Text: "ok"}
	tr.byIndex[2] = models.RawTranscript{Text: "ok"}
	tr.failIdx = 1

	p, slicer := newTestProcessor(t, tr)
	_, err := p.Process(context.Background(), longAsset(900))
	if err == nil {
		t.Fatal("expected batch failure when one segment fails")
	}

	// No partial merge was produced and segment files are still cleaned up.
	for _, path := range slicer.paths {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			t.Errorf("segment file %s not cleaned up after failure", path)
		}
	}
}

func TestProcessCleansUpOnSuccess(t *testing.T) {
	tr := newFakeTranscriber()
	tr.byIndex[0] = models.RawTranscript{Text: "only"}

	p, slicer := newTestProcessor(t, tr)
	if _, err := p.Process(context.Background(), longAsset(200)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	for _, path := range slicer.paths {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("segment file %s not cleaned up after success", path)
		}
	}
}

func TestSegmentCount(t *testing.T) {
	tr := newFakeTranscriber()
	for i := 0; i < 4; i++ {
		tr.byIndex[i] = models.RawTranscript{Text: fmt.Sprintf("seg %d", i)}
	}

	p, slicer := newTestProcessor(t, tr)
	// 16 minutes => ceil(960/300) = 4 segments
	if _, err := p.Process(context.Background(), longAsset(960)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(slicer.paths) != 4 {
		t.Errorf("expected 4 segments for 960s audio, got %d", len(slicer.paths))
	}
}

func TestDeriveChapters(t *testing.T) {
	words := make([]models.TranscriptWord, 100)
	for i := range words {
		words[i] = models.TranscriptWord{
			Text:    fmt.Sprintf("w%d", i),
			StartMs: int64(i) * 1000,
			EndMs:   int64(i)*1000 + 500,
		}
	}

	// 4 segments => min(5, ceil(4*1.5)) = 5 buckets of 20 words
	chapters := deriveChapters(words, 4)
	if len(chapters) != 5 {
		t.Fatalf("expected 5 chapters, got %d", len(chapters))
	}

	if chapters[0].StartMs != 0 {
		t.Errorf("first chapter start = %d, want 0", chapters[0].StartMs)
	}
	if chapters[0].EndMs != 19500 {
		t.Errorf("first chapter end = %d, want 19500", chapters[0].EndMs)
	}
	if chapters[4].StartMs != 80000 {
		t.Errorf("last chapter start = %d, want 80000", chapters[4].StartMs)
	}
	if chapters[4].EndMs != 99500 {
		t.Errorf("last chapter end = %d, want 99500", chapters[4].EndMs)
	}

	// 1 segment => ceil(1.5) = 2 buckets
	chapters = deriveChapters(words, 1)
	if len(chapters) != 2 {
		t.Errorf("expected 2 chapters for one segment, got %d", len(chapters))
	}

	if got := deriveChapters(nil, 3); got != nil {
		t.Errorf("expected no chapters for empty word list, got %+v", got)
	}
}
