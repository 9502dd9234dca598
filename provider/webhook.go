package provider

import (
	"context"
	"sync"
	"time"

	"vidscribe/errors"
)

// Sessions routes webhook notifications to the requests awaiting them.
// Each in-flight webhook-mode transcription registers a session id; the
// webhook handler delivers the observed status into the matching channel.
type Sessions struct {
	mu      sync.Mutex
	waiting map[string]chan JobStatus
}

func NewSessions() *Sessions {
	return &Sessions{waiting: make(map[string]chan JobStatus)}
}

// Expect registers a session and returns the channel its terminal status
// will arrive on.
func (s *Sessions) Expect(sessionID string) <-chan JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan JobStatus, 1)
	s.waiting[sessionID] = ch
	return ch
}

// Deliver hands a status to the session's waiter. Returns false when no one
// is waiting (late or unknown notification).
func (s *Sessions) Deliver(sessionID string, status JobStatus) bool {
	s.mu.Lock()
	ch, ok := s.waiting[sessionID]
	if ok {
		delete(s.waiting, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	ch <- status
	return true
}

// Forget drops a session that stopped waiting.
func (s *Sessions) Forget(sessionID string) {
	s.mu.Lock()
	delete(s.waiting, sessionID)
	s.mu.Unlock()
}

// awaitWebhook waits for the provider to push a terminal status, bounded by
// the same overall budget the polling path has. On timeout it makes one
// direct status fetch so the caller still gets a last observed status.
func (c *Client) awaitWebhook(ctx context.Context, sessionID, jobID string) (JobStatus, error) {
	const op = "ProviderClient.awaitWebhook"
	logger := c.logger.With().Str("operation", op).Str("session_id", sessionID).Str("job_id", jobID).Logger()

	ch := c.sessions.Expect(sessionID)
	defer c.sessions.Forget(sessionID)

	timer := time.NewTimer(c.config.AwaitBudget)
	defer timer.Stop()

	select {
	case status := <-ch:
		logger.Debug().Str("state", string(status.State)).Msg("Webhook delivered job status")
		return status, nil
	case <-timer.C:
		logger.Warn().Msg("Webhook budget exhausted, fetching last observed status directly")
		status, err := c.GetJob(ctx, jobID)
		if err != nil {
			return JobStatus{}, errors.Transcription(op, err, "No status observed before webhook budget expired")
		}
		return status, nil
	case <-ctx.Done():
		return JobStatus{}, errors.Transcription(op, ctx.Err(), "Context cancelled while awaiting webhook")
	}
}
