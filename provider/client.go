package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"vidscribe/errors"
	"vidscribe/models"
)

// WebhookHeaderName is the shared-secret header checked on provider push
// notifications.
const WebhookHeaderName = "X-Webhook-Secret"

type Config struct {
	APIKey  string
	BaseURL string

	UseWebhook    bool
	PublicBaseURL string
	WebhookSecret string

	Language     string
	SpeedProfile string

	PollMaxAttempts int
	AwaitBudget     time.Duration
	HTTPTimeout     time.Duration
}

// Client talks the upload/createJob/getJob protocol of the speech provider.
type Client struct {
	config   Config
	http     *http.Client
	logger   zerolog.Logger
	sessions *Sessions

	// pollDelay returns the wait before poll attempt n (0-based).
	// Overridable in tests.
	pollDelay func(attempt int) time.Duration
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.assemblyai.com/v2"
	}
	if cfg.PollMaxAttempts <= 0 {
		cfg.PollMaxAttempts = 30
	}
	if cfg.AwaitBudget <= 0 {
		cfg.AwaitBudget = 10 * time.Minute
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	return &Client{
		config:    cfg,
		http:      &http.Client{Timeout: cfg.HTTPTimeout},
		logger:    logger.With().Str("component", "provider").Logger(),
		sessions:  NewSessions(),
		pollDelay: defaultPollDelay,
	}
}

// Deliver routes a webhook-observed status to the request awaiting it.
func (c *Client) Deliver(sessionID string, status JobStatus) bool {
	return c.sessions.Deliver(sessionID, status)
}

// Upload sends a local audio file to the provider's upload endpoint and
// returns the audio URL for job creation.
func (c *Client) Upload(ctx context.Context, path string) (string, error) {
	const op = "ProviderClient.Upload"

	f, err := os.Open(path)
	if err != nil {
		return "", errors.Upload(op, err, "Failed to open audio file")
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/upload", f)
	if err != nil {
		return "", errors.Upload(op, err, "Failed to build upload request")
	}
	req.Header.Set("Authorization", c.config.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	// Uploads stream a file body, so they bypass the retrying helper;
	// a retried file body would need rewinding.
	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Upload(op, err, "Upload request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		return "", errors.Upload(op, nil, fmt.Sprintf("Upload rejected: status %d body %s", resp.StatusCode, body))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Upload(op, err, "Failed to decode upload response")
	}
	if out.UploadURL == "" {
		return "", errors.Upload(op, nil, "Upload response missing upload_url")
	}
	return out.UploadURL, nil
}

// CreateJob submits a transcription job for an uploaded audio URL.
func (c *Client) CreateJob(ctx context.Context, audioURL string, opts Options) (string, error) {
	const op = "ProviderClient.CreateJob"

	reqBody := createJobRequest{
		AudioURL:               audioURL,
		AutoChapters:           opts.AutoChapters,
		LanguageCode:           opts.Language,
		SpeechModel:            speechModel(opts.SpeedProfile),
		WebhookURL:             opts.WebhookURL,
		WebhookAuthHeaderName:  opts.WebhookAuthHeader,
		WebhookAuthHeaderValue: opts.WebhookAuthValue,
	}

	var out jobResponse
	if err := c.doJSON(ctx, http.MethodPost, c.config.BaseURL+"/transcript", reqBody, &out); err != nil {
		return "", errors.Transcription(op, err, "Failed to create transcription job")
	}
	if out.ID == "" {
		return "", errors.Transcription(op, nil, "Provider returned no job id")
	}
	return out.ID, nil
}

// GetJob fetches the current status of a transcription job.
func (c *Client) GetJob(ctx context.Context, jobID string) (JobStatus, error) {
	const op = "ProviderClient.GetJob"

	var out jobResponse
	if err := c.doJSON(ctx, http.MethodGet, c.config.BaseURL+"/transcript/"+jobID, nil, &out); err != nil {
		return JobStatus{}, errors.Transcription(op, err, "Failed to fetch job status")
	}
	return out.toStatus(), nil
}

// Transcribe runs the full single-pass flow: upload, create a chaptered
// job, await its terminal status over the configured transport, then run
// the independent summarization job. Summarization failure degrades to an
// empty summary and never fails the transcript.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (models.RawTranscript, error) {
	const op = "ProviderClient.Transcribe"

	audioURL, err := c.Upload(ctx, audioPath)
	if err != nil {
		return models.RawTranscript{}, err
	}

	opts := Options{
		AutoChapters: true,
		Language:     c.config.Language,
		SpeedProfile: c.config.SpeedProfile,
	}

	var sessionID string
	if c.config.UseWebhook && c.config.PublicBaseURL != "" {
		sessionID = uuid.New().String()
		opts.WebhookURL = c.config.PublicBaseURL + "/webhook/transcription/" + sessionID
		opts.WebhookAuthHeader = WebhookHeaderName
		opts.WebhookAuthValue = c.config.WebhookSecret
	}

	jobID, err := c.CreateJob(ctx, audioURL, opts)
	if err != nil {
		return models.RawTranscript{}, err
	}

	var status JobStatus
	if sessionID != "" {
		status, err = c.awaitWebhook(ctx, sessionID, jobID)
	} else {
		status, err = c.AwaitTerminal(ctx, jobID)
	}
	if err != nil {
		return models.RawTranscript{}, err
	}

	switch status.State {
	case StateCompleted:
		raw := status.toTranscript()
		if raw.Summary == "" {
			raw.Summary = c.summarize(ctx, audioURL)
		}
		return raw, nil
	case StateError:
		return models.RawTranscript{}, errors.Transcription(op, nil, "Provider reported failure: "+status.Reason)
	default:
		return models.RawTranscript{}, errors.Transcription(op, nil,
			fmt.Sprintf("Job did not reach terminal status within budget (last observed: %s)", status.State))
	}
}

// TranscribeFile is the segment variant: polling only, no chapters, no
// summary. Used by the parallel processor where chapters are derived from
// the merged word timeline instead.
func (c *Client) TranscribeFile(ctx context.Context, audioPath string) (models.RawTranscript, error) {
	const op = "ProviderClient.TranscribeFile"

	audioURL, err := c.Upload(ctx, audioPath)
	if err != nil {
		return models.RawTranscript{}, err
	}

	jobID, err := c.CreateJob(ctx, audioURL, Options{
		Language:     c.config.Language,
		SpeedProfile: c.config.SpeedProfile,
	})
	if err != nil {
		return models.RawTranscript{}, err
	}

	status, err := c.AwaitTerminal(ctx, jobID)
	if err != nil {
		return models.RawTranscript{}, err
	}

	switch status.State {
	case StateCompleted:
		return status.toTranscript(), nil
	case StateError:
		return models.RawTranscript{}, errors.Transcription(op, nil, "Provider reported failure: "+status.Reason)
	default:
		return models.RawTranscript{}, errors.Transcription(op, nil,
			fmt.Sprintf("Segment job did not reach terminal status within budget (last observed: %s)", status.State))
	}
}

// summarize runs the secondary summarization job against the same audio.
func (c *Client) summarize(ctx context.Context, audioURL string) string {
	const op = "ProviderClient.summarize"

	reqBody := createJobRequest{
		AudioURL:      audioURL,
		Summarization: true,
		SummaryType:   "bullets",
		SummaryModel:  "informative",
		SpeechModel:   "nano",
		LanguageCode:  c.config.Language,
	}

	var out jobResponse
	if err := c.doJSON(ctx, http.MethodPost, c.config.BaseURL+"/transcript", reqBody, &out); err != nil {
		c.logger.Warn().Err(err).Str("operation", op).Msg("Summary job creation failed, continuing without summary")
		return ""
	}

	status, err := c.AwaitTerminal(ctx, out.ID)
	if err != nil || status.State != StateCompleted {
		c.logger.Warn().Err(err).
			Str("operation", op).
			Str("job_id", out.ID).
			Msg("Summary job did not complete, continuing without summary")
		return ""
	}
	return status.Summary
}

func speechModel(profile string) string {
	if profile == "accurate" {
		return "best"
	}
	return "nano"
}

// doJSON performs a JSON request with bounded retries on transport errors
// and 5xx responses.
func (c *Client) doJSON(ctx context.Context, method, url string, in, out interface{}) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return pkgerrors.Wrap(err, "encode request")
		}
	}

	operation := func() error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", c.config.APIKey)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("server error: status %d body %s", resp.StatusCode, respBody)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return backoff.Permanent(fmt.Errorf("api error: status %d body %s", resp.StatusCode, respBody))
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return backoff.Permanent(pkgerrors.Wrapf(err, "decode response body %q", respBody))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(operation, policy)
}
