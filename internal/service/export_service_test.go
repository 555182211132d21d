package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
	"github.com/edulink/lms-api/pkg/storage"
)

type mockExportUsers struct {
	users []models.UserDetail
}

func (m *mockExportUsers) ListAllByRole(ctx context.Context, role models.UserRole, classID string) ([]models.UserDetail, error) {
	return m.users, nil
}

type mockExportSubjects struct {
	subjects []models.SubjectDetail
}

func (m *mockExportSubjects) ListAll(ctx context.Context) ([]models.SubjectDetail, error) {
	return m.subjects, nil
}

func newExportFixture(t *testing.T) (*ExportService, *mockExportUsers, *mockExportSubjects) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	rollNo := "17"
	className := "Grade 10A"
	users := &mockExportUsers{users: []models.UserDetail{
		{User: models.User{Name: "Ana Lima", Email: "ana@example.com", ContactNo: "555-0100", Role: models.RoleStudent, Status: models.StatusApproved, RollNo: &rollNo}, ClassName: &className},
	}}
	subjects := &mockExportSubjects{subjects: []models.SubjectDetail{
		{Subject: models.Subject{Name: "Mathematics"}, ClassName: "Grade 10A", TeacherName: "Mr. Diaz", TeacherEmail: "diaz@example.com"},
	}}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(users, subjects, store, signer, zap.NewNop(), nil, nil), users, subjects
}

func TestGenerateRosterCSVRoundTrip(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	result, err := svc.GenerateRoster(context.Background(), models.RoleStudent, "", ExportFormatCSV)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, ExportFormatCSV, result.Format)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	file, err := svc.OpenDownload(result.Token)
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Name,Email,Contact,Roll No,Class,Status")
	assert.Contains(t, string(content), "Ana Lima,ana@example.com,555-0100,17,Grade 10A,APPROVED")
}

func TestGenerateRosterRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	_, err := svc.GenerateRoster(context.Background(), models.RoleTeacher, "", ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGenerateCatalog(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	result, err := svc.GenerateCatalog(context.Background(), ExportFormatCSV)
	require.NoError(t, err)

	file, err := svc.OpenDownload(result.Token)
	require.NoError(t, err)
	defer file.Close()

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Subject,Class,Teacher,Teacher Email")
	assert.Contains(t, string(content), "Mathematics,Grade 10A,Mr. Diaz,diaz@example.com")
}

func TestExportsAreNotPaginated(t *testing.T) {
	svc, users, subjects := newExportFixture(t)
	for i := 0; i < 150; i++ {
		users.users = append(users.users, models.UserDetail{User: models.User{
			Name:  fmt.Sprintf("Student %03d", i),
			Email: fmt.Sprintf("student%03d@example.com", i),
			Role:  models.RoleStudent,
		}})
		subjects.subjects = append(subjects.subjects, models.SubjectDetail{
			Subject:   models.Subject{Name: fmt.Sprintf("Subject %03d", i)},
			ClassName: "Grade 10A",
		})
	}

	t.Run("roster", func(t *testing.T) {
		result, err := svc.GenerateRoster(context.Background(), models.RoleStudent, "", ExportFormatCSV)
		require.NoError(t, err)

		file, err := svc.OpenDownload(result.Token)
		require.NoError(t, err)
		defer file.Close()

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		lines := strings.Count(strings.TrimSpace(string(content)), "\n") + 1
		assert.Equal(t, 1+len(users.users), lines)
		assert.Contains(t, string(content), "Student 149")
	})

	t.Run("catalogue", func(t *testing.T) {
		result, err := svc.GenerateCatalog(context.Background(), ExportFormatCSV)
		require.NoError(t, err)

		file, err := svc.OpenDownload(result.Token)
		require.NoError(t, err)
		defer file.Close()

		content, err := io.ReadAll(file)
		require.NoError(t, err)
		lines := strings.Count(strings.TrimSpace(string(content)), "\n") + 1
		assert.Equal(t, 1+len(subjects.subjects), lines)
		assert.Contains(t, string(content), "Subject 149")
	})
}

func TestOpenDownloadRejectsTamperedToken(t *testing.T) {
	svc, _, _ := newExportFixture(t)

	result, err := svc.GenerateRoster(context.Background(), models.RoleTeacher, "", ExportFormatCSV)
	require.NoError(t, err)

	_, err = svc.OpenDownload(result.Token + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
