package segmenter

import (
	"math"
	"strings"

	"vidscribe/models"
)

const maxChapterContentChars = 500

// deriveChapters partitions the merged word timeline into
// min(5, ceil(segmentCount*1.5)) equal-sized buckets; each bucket becomes
// one chapter spanning its first and last word.
func deriveChapters(words []models.TranscriptWord, segmentCount int) []models.RawChapter {
	if len(words) == 0 {
		return nil
	}

	bucketCount := int(math.Ceil(float64(segmentCount) * 1.5))
	if bucketCount > 5 {
		bucketCount = 5
	}
	if bucketCount < 1 {
		bucketCount = 1
	}
	if bucketCount > len(words) {
		bucketCount = len(words)
	}

	bucketSize := int(math.Ceil(float64(len(words)) / float64(bucketCount)))
	chapters := make([]models.RawChapter, 0, bucketCount)

	for start := 0; start < len(words); start += bucketSize {
		end := start + bucketSize
		if end > len(words) {
			end = len(words)
		}
		bucket := words[start:end]

		chapters = append(chapters, models.RawChapter{
			Headline: chapterTitle(bucket),
			StartMs:  bucket[0].StartMs,
			EndMs:    bucket[len(bucket)-1].EndMs,
			Summary:  chapterContent(bucket),
		})
	}
	return chapters
}

// chapterTitle takes the bucket's first few words.
func chapterTitle(bucket []models.TranscriptWord) string {
	n := len(bucket)
	if n > 5 {
		n = 5
	}
	parts := make([]string, 0, n)
	for _, w := range bucket[:n] {
		parts = append(parts, w.Text)
	}
	title := strings.Join(parts, " ")
	if len(bucket) > n {
		title += "..."
	}
	return title
}

func chapterContent(bucket []models.TranscriptWord) string {
	parts := make([]string, 0, len(bucket))
	for _, w := range bucket {
		parts = append(parts, w.Text)
	}
	content := strings.Join(parts, " ")
	if len(content) > maxChapterContentChars {
		content = content[:maxChapterContentChars]
	}
	return content
}
