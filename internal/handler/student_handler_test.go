package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/lms-api/internal/middleware"
	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
)

type studentServiceMock struct {
	pending   []models.UserDetail
	updated   *models.User
	updateErr error

	lastStatus models.UserStatus
	lastID     string
}

func (m *studentServiceMock) PendingStudents(ctx context.Context, actor *models.User) ([]models.UserDetail, error) {
	return m.pending, nil
}

func (m *studentServiceMock) UpdateStatus(ctx context.Context, actor *models.User, studentID string, status models.UserStatus) (*models.User, error) {
	m.lastID = studentID
	m.lastStatus = status
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.updated, nil
}

func TestStudentHandlerUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &studentServiceMock{updated: &models.User{ID: "s-1", Role: models.RoleStudent, Status: models.StatusApproved}}
	handler := NewStudentHandler(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(updateStatusRequest{Status: models.StatusApproved})
	req, _ := http.NewRequest(http.MethodPatch, "/students/s-1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}
	c.Set(middleware.ContextActorKey, testActor(models.RoleTeacher))

	handler.UpdateStatus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s-1", mock.lastID)
	assert.Equal(t, models.StatusApproved, mock.lastStatus)
}

func TestStudentHandlerUpdateStatusMissingBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStudentHandler(&studentServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/students/s-1/status", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}
	c.Set(middleware.ContextActorKey, testActor(models.RoleTeacher))

	handler.UpdateStatus(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentHandlerUpdateStatusForwardsForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &studentServiceMock{updateErr: appErrors.Clone(appErrors.ErrForbidden, "not a teacher of this class")}
	handler := NewStudentHandler(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(updateStatusRequest{Status: models.StatusRejected})
	req, _ := http.NewRequest(http.MethodPatch, "/students/s-1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "s-1"}}
	c.Set(middleware.ContextActorKey, testActor(models.RoleTeacher))

	handler.UpdateStatus(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStudentHandlerPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	className := "Grade 10A"
	mock := &studentServiceMock{pending: []models.UserDetail{
		{User: models.User{ID: "s-1", Name: "New Student", Role: models.RoleStudent, Status: models.StatusPending}, ClassName: &className},
	}}
	handler := NewStudentHandler(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/pending", nil)
	c.Request = req
	c.Set(middleware.ContextActorKey, testActor(models.RoleTeacher))

	handler.Pending(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "New Student")
}

func TestStudentHandlerPendingWithoutActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewStudentHandler(&studentServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/pending", nil)
	c.Request = req

	handler.Pending(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
