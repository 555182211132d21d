package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edulink/lms-api/internal/models"
)

type mockClassListRepo struct {
	mockClassRepo
	listed     []models.Class
	teacherIDs map[string][]string
}

func (m *mockClassListRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return false, nil
}

func (m *mockClassListRepo) Create(ctx context.Context, class *models.Class) error {
	class.ID = "c-new"
	return nil
}

func (m *mockClassListRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	return m.listed, len(m.listed), nil
}

func (m *mockClassListRepo) AssignTeacher(ctx context.Context, classID, teacherID string) (bool, error) {
	return true, nil
}

func (m *mockClassListRepo) ListTeachers(ctx context.Context, classID string) ([]models.TeacherRef, error) {
	var refs []models.TeacherRef
	for _, id := range m.teacherIDs[classID] {
		refs = append(refs, models.TeacherRef{ID: id})
	}
	return refs, nil
}

type mockClassSubjects struct {
	byClass map[string][]models.SubjectDetail
}

func (m *mockClassSubjects) ListByClass(ctx context.Context, classID string) ([]models.SubjectDetail, error) {
	return m.byClass[classID], nil
}

func newClassFixture() (*ClassService, *mockClassListRepo) {
	classes := &mockClassListRepo{
		listed:     []models.Class{{ID: "c-1", Name: "Grade 10A"}},
		teacherIDs: map[string][]string{"c-1": {"t-1", "t-2"}},
	}
	subjects := &mockClassSubjects{byClass: map[string][]models.SubjectDetail{
		"c-1": {
			{Subject: models.Subject{ID: "sub-1", Name: "Mathematics", ClassID: "c-1", TeacherID: "t-1"}},
			{Subject: models.Subject{ID: "sub-2", Name: "History", ClassID: "c-1", TeacherID: "t-2"}},
		},
	}}
	users := newMockUserRepo()
	svc := NewClassService(classes, subjects, users, &mockAuditRepo{}, validator.New(), zap.NewNop())
	return svc, classes
}

func TestTeacherClassesListsOwnSubjectsOnly(t *testing.T) {
	svc, _ := newClassFixture()

	overviews, err := svc.TeacherClasses(context.Background(), "t-1")
	require.NoError(t, err)
	require.Len(t, overviews, 1)
	require.Len(t, overviews[0].Subjects, 1)
	assert.Equal(t, "sub-1", overviews[0].Subjects[0].ID)
	assert.Len(t, overviews[0].Teachers, 2)
}

func TestListClassesKeepsAllSubjects(t *testing.T) {
	svc, _ := newClassFixture()

	overviews, pagination, err := svc.ListClasses(context.Background(), models.ClassFilter{})
	require.NoError(t, err)
	require.Len(t, overviews, 1)
	assert.Len(t, overviews[0].Subjects, 2)
	require.NotNil(t, pagination)
	assert.Equal(t, 1, pagination.TotalCount)
}
