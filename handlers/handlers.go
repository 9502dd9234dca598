package handlers

import (
	"github.com/gofiber/fiber/v2"

	"vidscribe/errors"
	"vidscribe/models"
	"vidscribe/services/pipeline"
	"vidscribe/validation"
)

type TranscribeHandler struct {
	service   pipeline.Service
	validator *validation.Validator
}

func NewTranscribeHandler(service pipeline.Service, validator *validation.Validator) *TranscribeHandler {
	return &TranscribeHandler{service: service, validator: validator}
}

func (h *TranscribeHandler) Transcribe(c *fiber.Ctx) error {
	var req models.TranscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "Invalid request body",
		}
	}
	if req.VideoURL == "" {
		return &errors.AppError{
			Code:    fiber.StatusBadRequest,
			Message: "videoUrl is required",
		}
	}

	result, err := h.service.Transcribe(c.Context(), req.VideoURL)
	if err != nil {
		return err
	}

	// Resolution already succeeded inside the pipeline; this re-derives
	// the id for the response metadata only.
	videoID := ""
	if ref, err := h.validator.Resolve(req.VideoURL); err == nil {
		videoID = ref.ID
	}

	return c.JSON(models.NewTranscribeResponse(videoID, result))
}

func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}
