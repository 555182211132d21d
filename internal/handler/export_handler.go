package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/edulink/lms-api/internal/models"
	"github.com/edulink/lms-api/internal/service"
	appErrors "github.com/edulink/lms-api/pkg/errors"
	"github.com/edulink/lms-api/pkg/response"
)

// ExportHandler wires HTTP endpoints to roster exports.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Generate godoc
// @Summary Generate a roster export and return a signed download token
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param role query string true "Roster role (student or teacher)"
// @Param class_id query string false "Limit the roster to one class"
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exports/roster [post]
func (h *ExportHandler) Generate(c *gin.Context) {
	role := models.UserRole(c.Query("role"))
	if role != models.RoleStudent && role != models.RoleTeacher {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "role must be student or teacher"))
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.service.GenerateRoster(c.Request.Context(), role, c.Query("class_id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"download_url": fmt.Sprintf("/api/v1/exports/download?token=%s", result.Token),
		"format":       result.Format,
		"expires_at":   result.ExpiresAt,
	}, nil)
}

// Catalog godoc
// @Summary Generate a subject catalogue export
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Param format query string false "Export format (csv or pdf)" default(csv)
// @Success 200 {object} response.Envelope
// @Router /exports/catalog [post]
func (h *ExportHandler) Catalog(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.service.GenerateCatalog(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"download_url": fmt.Sprintf("/api/v1/exports/download?token=%s", result.Token),
		"format":       result.Format,
		"expires_at":   result.ExpiresAt,
	}, nil)
}

// Download godoc
// @Summary Download a previously generated export
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	file, err := h.service.OpenDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	name := filepath.Base(file.Name())
	contentType := "text/csv"
	if filepath.Ext(name) == ".pdf" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}
