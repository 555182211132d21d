package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edulink/lms-api/internal/middleware"
	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
	"github.com/edulink/lms-api/pkg/response"
)

type studentModerationService interface {
	PendingStudents(ctx context.Context, actor *models.User) ([]models.UserDetail, error)
	UpdateStatus(ctx context.Context, actor *models.User, studentID string, status models.UserStatus) (*models.User, error)
}

// StudentHandler wires HTTP endpoints to student moderation.
type StudentHandler struct {
	service studentModerationService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(svc studentModerationService) *StudentHandler {
	return &StudentHandler{service: svc}
}

type updateStatusRequest struct {
	Status models.UserStatus `json:"status" binding:"required"`
}

// Pending godoc
// @Summary List pending students awaiting approval in the caller's classes
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/pending [get]
func (h *StudentHandler) Pending(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	students, err := h.service.PendingStudents(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// UpdateStatus godoc
// @Summary Approve or reject a student registration
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body updateStatusRequest true "New status"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/status [patch]
func (h *StudentHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	student, err := h.service.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}
