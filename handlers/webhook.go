package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"vidscribe/errors"
	"vidscribe/models"
	"vidscribe/provider"
)

// WebhookReceiver is the slice of the provider client the webhook endpoint
// needs: fetch the full job on notification, hand it to the waiting session.
type WebhookReceiver interface {
	GetJob(ctx context.Context, jobID string) (provider.JobStatus, error)
	Deliver(sessionID string, status provider.JobStatus) bool
}

type WebhookHandler struct {
	receiver WebhookReceiver
	secret   string
	logger   zerolog.Logger
}

func NewWebhookHandler(receiver WebhookReceiver, secret string, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		receiver: receiver,
		secret:   secret,
		logger:   logger.With().Str("component", "webhook").Logger(),
	}
}

// HandleNotification receives the provider's job-state callback. The
// notification body carries only the job id and status; the full transcript
// is fetched with a follow-up call before delivery to the waiting request.
func (h *WebhookHandler) HandleNotification(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	if sessionID == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "Session ID is required",
		}
	}

	if h.secret != "" && c.Get(provider.WebhookHeaderName) != h.secret {
		h.logger.Warn().Str("session_id", sessionID).Msg("Webhook secret mismatch")
		return &errors.AppError{
			Code:    fiber.StatusUnauthorized,
			Message: "Invalid webhook secret",
		}
	}

	var note models.WebhookNotification
	if err := c.BodyParser(&note); err != nil {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "Invalid notification body",
		}
	}
	if note.TranscriptID == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "transcript_id is required",
		}
	}

	logger := h.logger.With().
		Str("session_id", sessionID).
		Str("job_id", note.TranscriptID).
		Str("status", note.Status).
		Logger()
	logger.Info().Msg("Webhook notification received")

	status, err := h.receiver.GetJob(c.Context(), note.TranscriptID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch job after notification")
		return err
	}

	if !h.receiver.Deliver(sessionID, status) {
		logger.Warn().Msg("No request waiting for this session")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"status":  string(status.State),
	})
}
