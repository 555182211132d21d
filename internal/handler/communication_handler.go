package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edulink/lms-api/internal/middleware"
	"github.com/edulink/lms-api/internal/models"
	"github.com/edulink/lms-api/internal/service"
	appErrors "github.com/edulink/lms-api/pkg/errors"
	"github.com/edulink/lms-api/pkg/response"
)

type communicationService interface {
	SendQuery(ctx context.Context, actor *models.User, req service.SendQueryRequest) (*models.Communication, error)
	Reply(ctx context.Context, actor *models.User, originalID string, req service.ReplyRequest) (*models.Communication, error)
	Notifications(ctx context.Context, actor *models.User, unreadOnly bool) ([]models.CommunicationDetail, error)
	Sent(ctx context.Context, actor *models.User) ([]models.CommunicationDetail, error)
	SubjectQueries(ctx context.Context, actor *models.User, subjectID string) ([]models.CommunicationDetail, error)
	ConversationWith(ctx context.Context, actor *models.User, otherID string) ([]models.CommunicationDetail, error)
	Thread(ctx context.Context, actor *models.User, rootID string) ([]models.CommunicationDetail, error)
	MarkRead(ctx context.Context, actor *models.User, commID string) error
	UnreadCount(ctx context.Context, actor *models.User) (int, error)
}

// CommunicationHandler wires HTTP endpoints to queries, replies and
// notifications.
type CommunicationHandler struct {
	service communicationService
}

// NewCommunicationHandler creates a new handler.
func NewCommunicationHandler(svc communicationService) *CommunicationHandler {
	return &CommunicationHandler{service: svc}
}

// SendQuery godoc
// @Summary Send a question about a subject to its teacher
// @Tags Communications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.SendQueryRequest true "Query payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /queries [post]
func (h *CommunicationHandler) SendQuery(c *gin.Context) {
	var req service.SendQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query payload"))
		return
	}

	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	comm, err := h.service.SendQuery(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comm)
}

// Reply godoc
// @Summary Reply to a communication addressed to the caller
// @Tags Communications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Original communication ID"
// @Param payload body service.ReplyRequest true "Reply payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /communications/{id}/reply [post]
func (h *CommunicationHandler) Reply(c *gin.Context) {
	var req service.ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reply payload"))
		return
	}

	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	reply, err := h.service.Reply(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reply)
}

// Notifications godoc
// @Summary List the caller's received communications
// @Tags Communications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *CommunicationHandler) Notifications(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	unreadOnly := c.Query("unread") == "true"
	comms, err := h.service.Notifications(c.Request.Context(), actor, unreadOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comms, nil)
}

// Sent godoc
// @Summary List the communications sent by the caller
// @Tags Communications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /communications/sent [get]
func (h *CommunicationHandler) Sent(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	comms, err := h.service.Sent(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comms, nil)
}

// SubjectQueries godoc
// @Summary List the student queries received for a subject
// @Tags Communications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /subjects/{id}/queries [get]
func (h *CommunicationHandler) SubjectQueries(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	comms, err := h.service.SubjectQueries(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comms, nil)
}

// Conversation godoc
// @Summary List the messages exchanged with another user
// @Tags Communications
// @Produce json
// @Security BearerAuth
// @Param userId path string true "Other user ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /communications/with/{userId} [get]
func (h *CommunicationHandler) Conversation(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	comms, err := h.service.ConversationWith(c.Request.Context(), actor, c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comms, nil)
}

// Thread godoc
// @Summary Fetch a conversation thread rooted at a communication
// @Tags Communications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Root communication ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /communications/{id}/thread [get]
func (h *CommunicationHandler) Thread(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	comms, err := h.service.Thread(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comms, nil)
}

// MarkRead godoc
// @Summary Mark a received communication as read
// @Tags Communications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Communication ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [patch]
func (h *CommunicationHandler) MarkRead(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UnreadCount godoc
// @Summary Count the caller's unread communications
// @Tags Communications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /notifications/unread-count [get]
func (h *CommunicationHandler) UnreadCount(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread_count": count}, nil)
}
