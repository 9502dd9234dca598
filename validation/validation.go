package validation

import (
	"net/url"
	"regexp"
	"strings"

	"vidscribe/errors"
	"vidscribe/models"
)

// videoIDPattern matches the 11-character id in the supported URL forms:
// watch?v=, youtu.be/, embed/, shorts/, v/.
var videoIDPattern = regexp.MustCompile(`(?:youtu\.be/|youtube\.com/(?:watch\?(?:.*&)?v=|embed/|shorts/|v/))([A-Za-z0-9_-]{11})(?:[?&#]|$)`)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Resolve validates a video URL and derives the stable reference used as
// the cache key. Two URL forms for the same video yield the same ID.
func (v *Validator) Resolve(urlStr string) (models.VideoReference, error) {
	const op = "Validator.Resolve"

	if strings.TrimSpace(urlStr) == "" {
		return models.VideoReference{}, errors.InvalidReference(op, nil, "Video URL is required")
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return models.VideoReference{}, errors.InvalidReference(op, err, "Invalid URL format")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return models.VideoReference{}, errors.InvalidReference(op, nil, "URL must use HTTP or HTTPS")
	}

	host := parsedURL.Hostname()
	if !strings.Contains(host, "youtube.com") && !strings.Contains(host, "youtu.be") {
		return models.VideoReference{}, errors.InvalidReference(op, nil, "Only YouTube URLs are supported")
	}

	m := videoIDPattern.FindStringSubmatch(urlStr)
	if m == nil {
		return models.VideoReference{}, errors.InvalidReference(op, nil, "Could not extract a video ID from URL")
	}

	return models.VideoReference{ID: m[1], URL: urlStr}, nil
}
