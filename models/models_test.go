package models

import (
	"testing"
)

func TestParseStartTime(t *testing.T) {
	tests := []struct {
		input   string
		seconds int
		wantErr bool
	}{
		{"0:00", 0, false},
		{"1:30", 90, false},
		{"2:15", 135, false},
		{"12:05", 725, false},
		{"1:5", 0, true},
		{"1:75", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStartTime(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.seconds {
				t.Errorf("ParseStartTime(%q) = %d, want %d", tt.input, got, tt.seconds)
			}
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{90000, "1:30"},
		{135000, "2:15"},
		{600000, "10:00"},
		{-5, "0:00"},
	}

	for _, tt := range tests {
		if got := FormatTimestamp(tt.ms); got != tt.want {
			t.Errorf("FormatTimestamp(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestSortChapters(t *testing.T) {
	chapters := []Chapter{
		{ID: "a", StartTime: "2:15"},
		{ID: "b", StartTime: "0:00"},
		{ID: "c", StartTime: "1:30"},
	}

	SortChapters(chapters)

	want := []string{"0:00", "1:30", "2:15"}
	for i, w := range want {
		if chapters[i].StartTime != w {
			t.Errorf("chapter %d start time = %q, want %q", i, chapters[i].StartTime, w)
		}
	}
}

func TestEnsureChapterIDs(t *testing.T) {
	chapters := []Chapter{
		{ID: "intro"},
		{ID: ""},
		{ID: "intro"},
	}

	EnsureChapterIDs(chapters)

	if chapters[0].ID != "intro" {
		t.Errorf("existing id should be preserved, got %q", chapters[0].ID)
	}
	if chapters[1].ID != "chapter-2" {
		t.Errorf("missing id should be filled, got %q", chapters[1].ID)
	}
	if chapters[2].ID != "chapter-3" {
		t.Errorf("duplicate id should be replaced, got %q", chapters[2].ID)
	}
}

func TestEmbedAndThumbnailURL(t *testing.T) {
	if got := EmbedURL("abc12345678"); got != "https://www.youtube.com/embed/abc12345678" {
		t.Errorf("unexpected embed url %q", got)
	}
	if got := ThumbnailURL("abc12345678"); got != "https://i.ytimg.com/vi/abc12345678/hqdefault.jpg" {
		t.Errorf("unexpected thumbnail url %q", got)
	}
}
