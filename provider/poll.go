package provider

import (
	"time"

	"context"

	"vidscribe/errors"
)

// defaultPollDelay implements the backoff schedule: short intervals first,
// then medium, then long.
func defaultPollDelay(attempt int) time.Duration {
	switch {
	case attempt < 5:
		return 3 * time.Second
	case attempt < 15:
		return 10 * time.Second
	default:
		return 30 * time.Second
	}
}

// AwaitTerminal polls the job until a terminal status is observed or the
// attempt budget runs out. On exhaustion it returns the last observed
// status rather than an error; the caller decides what a non-terminal last
// observation means.
func (c *Client) AwaitTerminal(ctx context.Context, jobID string) (JobStatus, error) {
	const op = "ProviderClient.AwaitTerminal"
	logger := c.logger.With().Str("operation", op).Str("job_id", jobID).Logger()

	var last JobStatus
	observed := false

	for attempt := 0; attempt < c.config.PollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			if observed {
				return last, nil
			}
			return JobStatus{}, errors.Transcription(op, ctx.Err(), "Context cancelled while awaiting job")
		case <-time.After(c.pollDelay(attempt)):
		}

		status, err := c.GetJob(ctx, jobID)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("Status poll failed")
			continue
		}

		observed = true
		last = status
		logger.Debug().Int("attempt", attempt).Str("state", string(status.State)).Msg("Polled job status")

		if status.State.Terminal() {
			return status, nil
		}
	}

	if !observed {
		return JobStatus{}, errors.Transcription(op, nil, "No job status could be observed within the polling budget")
	}

	logger.Warn().Str("state", string(last.State)).Msg("Polling budget exhausted, reporting last observed status")
	return last, nil
}
