package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/risk-alert-api/internal/dto"
	"github.com/noah-isme/risk-alert-api/internal/middleware"
	"github.com/noah-isme/risk-alert-api/internal/models"
	"github.com/noah-isme/risk-alert-api/internal/service"
	"github.com/noah-isme/risk-alert-api/internal/utils"
)

// StudentHandler serves academic records and on-demand rescoring.
type StudentHandler struct {
	service service.StudentService
	logger  zerolog.Logger
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(service service.StudentService, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		service: service,
		logger:  logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register wires student routes. /me is for students, everything else for mentors.
func (h *StudentHandler) Register(router fiber.Router) {
	mentorOnly := middleware.RequireRole(models.RoleMentor)

	router.Get("/me", middleware.RequireRole(models.RoleStudent), h.me)
	router.Get("", mentorOnly, h.list)
	router.Get("/high-risk", mentorOnly, h.highRisk)
	router.Get("/:id", mentorOnly, h.get)
	router.Put("/:id", mentorOnly, h.update)
	router.Post("/:id/analyze", mentorOnly, h.analyze)
}

func (h *StudentHandler) me(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	student, err := h.service.GetMine(c.UserContext(), userID)
	if err != nil {
		return h.respondError(c, err, "failed to load academic record")
	}

	return utils.SendSuccess(c, "academic record retrieved", student)
}

func (h *StudentHandler) list(c *fiber.Ctx) error {
	students, err := h.service.List(c.UserContext())
	if err != nil {
		return h.respondError(c, err, "failed to list students")
	}

	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *StudentHandler) highRisk(c *fiber.Ctx) error {
	result, err := h.service.ListHighRisk(c.UserContext())
	if err != nil {
		return h.respondError(c, err, "failed to list high-risk students")
	}

	return utils.SendSuccess(c, "high-risk students retrieved", result)
}

func (h *StudentHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	student, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err, "failed to load student")
	}

	return utils.SendSuccess(c, "student retrieved", student)
}

func (h *StudentHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	var req dto.StudentUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}

	student, err := h.service.Update(c.UserContext(), id, req)
	if err != nil {
		return h.respondError(c, err, "failed to update student")
	}

	requestLogger(h.logger, c).Info().Uint("student_id", id).Uint("mentor_id", userIDFromContext(c)).Msg("student record updated")
	return utils.SendSuccess(c, "student updated", student)
}

func (h *StudentHandler) analyze(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	result, err := h.service.Analyze(c.UserContext(), id)
	if err != nil {
		return h.respondError(c, err, "failed to analyze student")
	}

	return utils.SendSuccess(c, "risk analysis complete", result)
}

func (h *StudentHandler) respondError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case isValidationError(err):
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "validation failed", utils.ValidationDetails(err))
	case errors.Is(err, service.ErrInvalidInput):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(fallback)
		return utils.SendError(c, fiber.StatusInternalServerError, fallback)
	}
}
