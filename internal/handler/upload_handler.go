package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/risk-alert-api/internal/middleware"
	"github.com/noah-isme/risk-alert-api/internal/service"
	"github.com/noah-isme/risk-alert-api/internal/utils"
)

// UploadHandler accepts roster spreadsheets.
type UploadHandler struct {
	service service.RosterUploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.RosterUploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires the upload route. Extra handlers (rate limiting, role checks) run first.
func (h *UploadHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	handlers := append(guards, h.upload)
	router.Post("/upload", handlers...)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, service.ErrUploadMissing.Error())
	}

	result, err := h.service.Upload(c.UserContext(), file, middleware.GetCorrelationID(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUploadTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, service.ErrUnsupportedRoster),
			errors.Is(err, service.ErrEmptyRoster),
			errors.Is(err, service.ErrMalformedRoster),
			errors.Is(err, service.ErrUploadMissing):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("roster upload failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "roster upload failed")
		}
	}

	requestLogger(h.logger, c).Info().
		Str("role", userRoleFromContext(c)).
		Int("students", len(result.Processed)).
		Int("skipped_rows", result.Skipped).
		Bool("dispatch_scheduled", result.DispatchScheduled).
		Msg("roster processed")

	return utils.SendSuccess(c, "roster processed", result)
}
