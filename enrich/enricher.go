package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vidscribe/errors"
	"vidscribe/models"
)

const (
	requestTimeout = 2 * time.Minute

	// promptCharBudget bounds the transcript characters sent to the model.
	// The stored transcript is never truncated; this applies to the prompt
	// only.
	promptCharBudget = 120000
)

const systemPrompt = "You are an assistant that analyzes video transcripts. " +
	"You produce a concise bullet-point summary and divide the content into logical chapters with timestamps."

var startTimeFormat = regexp.MustCompile(`^\d+:\d{2}$`)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enricher polishes a raw transcript with a language model. Every failure
// falls back to the best available prior data; Enhance never returns an
// error to its caller.
type Enricher struct {
	config Config
	http   *http.Client
	logger zerolog.Logger
}

func NewEnricher(cfg Config, logger zerolog.Logger) *Enricher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &Enricher{
		config: cfg,
		http:   &http.Client{Timeout: requestTimeout},
		logger: logger.With().Str("component", "enrich").Logger(),
	}
}

// Enabled reports whether a model credential is configured. Absence is a
// normal skip, not an error.
func (e *Enricher) Enabled() bool {
	return strings.TrimSpace(e.config.APIKey) != ""
}

// Enhance asks the model for a polished summary and chapter list. On any
// failure it returns prior provider data when present, otherwise a single
// catch-all chapter, so callers always get a usable pair.
func (e *Enricher) Enhance(ctx context.Context, transcript string, priorChapters []models.Chapter, priorSummary string) (string, []models.Chapter) {
	const op = "Enricher.Enhance"

	summary, chapters, err := e.callModel(ctx, transcript)
	if err != nil {
		e.logger.Warn().Err(err).Str("operation", op).Msg("Enrichment failed, using fallback")
		return fallback(transcript, priorChapters, priorSummary)
	}

	e.logger.Info().
		Str("operation", op).
		Int("chapters", len(chapters)).
		Msg("Enrichment complete")
	return summary, chapters
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type enrichmentPayload struct {
	Summary  string `json:"summary"`
	Chapters []struct {
		Title     string `json:"title"`
		StartTime string `json:"startTime"`
		Content   string `json:"content"`
	} `json:"chapters"`
}

func (e *Enricher) callModel(ctx context.Context, transcript string) (string, []models.Chapter, error) {
	const op = "Enricher.callModel"

	prompt := fmt.Sprintf(
		"Analyze this transcript. Produce a summary of 5-7 bullet points and divide the content into 3-5 chapters."+
			" For each chapter provide a short title, the start timestamp in M:SS format, and the first few sentences of that chapter."+
			"\n\nRespond with JSON in this exact structure:"+
			" {\"summary\": \"...\", \"chapters\": [{\"title\": \"...\", \"startTime\": \"M:SS\", \"content\": \"...\"}]}"+
			"\n\nTranscript:\n%s",
		truncateForPrompt(transcript, promptCharBudget),
	)

	reqBody := chatRequest{
		Model: e.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature:    0.2,
		ResponseFormat: &respFormat{Type: "json_object"},
	}

	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(reqBody); err != nil {
		return "", nil, errors.Enrichment(op, err, "Failed to encode model request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/chat/completions", buf)
	if err != nil {
		return "", nil, errors.Enrichment(op, err, "Failed to build model request")
	}
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return "", nil, errors.Enrichment(op, err, "Model request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return "", nil, errors.Enrichment(op, nil, fmt.Sprintf("Model API error: status %d body %s", resp.StatusCode, body))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return "", nil, errors.Enrichment(op, err, "Failed to decode model response")
	}
	if len(chat.Choices) == 0 {
		return "", nil, errors.Enrichment(op, nil, "Model returned no choices")
	}

	return parsePayload(chat.Choices[0].Message.Content)
}

func parsePayload(content string) (string, []models.Chapter, error) {
	const op = "Enricher.parsePayload"

	var payload enrichmentPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return "", nil, errors.Enrichment(op, err, "Model output is not valid JSON")
	}
	if payload.Summary == "" || len(payload.Chapters) == 0 {
		return "", nil, errors.Enrichment(op, nil, "Model output missing summary or chapters")
	}

	chapters := make([]models.Chapter, 0, len(payload.Chapters))
	for i, ch := range payload.Chapters {
		startTime := ch.StartTime
		if !startTimeFormat.MatchString(startTime) {
			startTime = fmt.Sprintf("%d:00", i)
		}
		title := ch.Title
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		chapters = append(chapters, models.Chapter{
			ID:        fmt.Sprintf("chapter-%d", i+1),
			Title:     title,
			StartTime: startTime,
			Content:   ch.Content,
		})
	}

	models.SortChapters(chapters)
	return payload.Summary, chapters, nil
}

// fallback returns the best available data when the model call fails:
// prior provider chapters and summary when present, otherwise a single
// catch-all chapter spanning the whole content.
func fallback(transcript string, priorChapters []models.Chapter, priorSummary string) (string, []models.Chapter) {
	summary := priorSummary
	if summary == "" {
		summary = "Summary unavailable."
	}

	if len(priorChapters) > 0 {
		return summary, priorChapters
	}

	content := transcript
	if len(content) > 500 {
		content = content[:500]
	}
	return summary, []models.Chapter{{
		ID:        "chapter-1",
		Title:     "Full Content",
		StartTime: "0:00",
		Content:   content,
	}}
}
