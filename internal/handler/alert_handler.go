package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/risk-alert-api/internal/dto"
	"github.com/noah-isme/risk-alert-api/internal/service"
	"github.com/noah-isme/risk-alert-api/internal/utils"
)

// AlertHandler exposes manual dispatch and the recurring schedule.
type AlertHandler struct {
	dispatcher service.AlertDispatcher
	scheduler  service.AlertScheduler
	logger     zerolog.Logger
}

// NewAlertHandler constructs an alert handler.
func NewAlertHandler(dispatcher service.AlertDispatcher, scheduler service.AlertScheduler, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{
		dispatcher: dispatcher,
		scheduler:  scheduler,
		logger:     logger.With().Str("component", "alert_handler").Logger(),
	}
}

// Register wires alert routes.
func (h *AlertHandler) Register(router fiber.Router) {
	router.Post("/send", h.send)
	router.Post("/schedule", h.schedule)
	router.Get("/scheduler-status", h.status)
}

func (h *AlertHandler) send(c *fiber.Ctx) error {
	result, err := h.dispatcher.Dispatch(c.UserContext())
	if err != nil {
		if errors.Is(err, service.ErrDispatcherUnavailable) {
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("alert dispatch failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "alert dispatch failed")
	}

	message := "alerts dispatched"
	if result.HighRiskCount == 0 {
		message = "no high-risk students found"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *AlertHandler) schedule(c *fiber.Ctx) error {
	if h.scheduler == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "alert scheduler unavailable")
	}

	var req dto.ScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}
	if req.Enabled == nil {
		return utils.SendError(c, fiber.StatusBadRequest, "enabled is required")
	}

	var (
		status dto.SchedulerStatus
		err    error
	)
	if *req.Enabled {
		status, err = h.scheduler.Enable(c.UserContext(), req.Schedule)
	} else {
		status, err = h.scheduler.Disable(c.UserContext())
	}
	if err != nil {
		if errors.Is(err, service.ErrInvalidSchedule) {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to update alert schedule")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to update alert schedule")
	}

	message := "alert schedule disabled"
	if status.Active {
		message = "alert schedule enabled"
	}
	requestLogger(h.logger, c).Info().Bool("active", status.Active).Str("schedule", status.Schedule).Msg(message)
	return utils.SendSuccess(c, message, status)
}

func (h *AlertHandler) status(c *fiber.Ctx) error {
	if h.scheduler == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "alert scheduler unavailable")
	}
	return utils.SendSuccess(c, "scheduler status retrieved", h.scheduler.Status())
}
