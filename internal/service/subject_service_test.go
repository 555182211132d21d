package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
)

type mockSubjectRepo struct {
	byID     map[string]*models.Subject
	names    map[string]bool
	created  []*models.Subject
	byClass  []models.SubjectDetail
	byTeach  []models.SubjectDetail
	listErr  error
	creates  int
	createEr error
}

func newMockSubjectRepo() *mockSubjectRepo {
	return &mockSubjectRepo{byID: map[string]*models.Subject{}, names: map[string]bool{}}
}

func (m *mockSubjectRepo) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (m *mockSubjectRepo) FindDetailByID(ctx context.Context, id string) (*models.SubjectDetail, error) {
	s, ok := m.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.SubjectDetail{Subject: *s}, nil
}

func (m *mockSubjectRepo) ExistsByNameInClass(ctx context.Context, name, classID string) (bool, error) {
	return m.names[name+"|"+classID], nil
}

func (m *mockSubjectRepo) CreateWithClassAssignment(ctx context.Context, subject *models.Subject) error {
	if m.createEr != nil {
		return m.createEr
	}
	m.creates++
	subject.ID = "sub-created"
	m.created = append(m.created, subject)
	m.byID[subject.ID] = subject
	return nil
}

func (m *mockSubjectRepo) ListByClass(ctx context.Context, classID string) ([]models.SubjectDetail, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.byClass, nil
}

func (m *mockSubjectRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.SubjectDetail, error) {
	return m.byTeach, nil
}

func (m *mockSubjectRepo) List(ctx context.Context, page, pageSize int) ([]models.SubjectDetail, int, error) {
	return m.byClass, len(m.byClass), nil
}

type mockClassEdgeRepo struct {
	mockClassRepo
	teacherIDs map[string][]string
	assigned   [][2]string
	dupPair    bool
}

func (m *mockClassEdgeRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	return false, nil
}

func (m *mockClassEdgeRepo) Create(ctx context.Context, class *models.Class) error {
	return nil
}

func (m *mockClassEdgeRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	return nil, 0, nil
}

func (m *mockClassEdgeRepo) AssignTeacher(ctx context.Context, classID, teacherID string) (bool, error) {
	m.assigned = append(m.assigned, [2]string{classID, teacherID})
	return !m.dupPair, nil
}

func (m *mockClassEdgeRepo) ListTeachers(ctx context.Context, classID string) ([]models.TeacherRef, error) {
	var refs []models.TeacherRef
	for _, id := range m.teacherIDs[classID] {
		refs = append(refs, models.TeacherRef{ID: id})
	}
	return refs, nil
}

func newSubjectFixture() (*SubjectService, *mockSubjectRepo, *mockKVCache) {
	subjects := newMockSubjectRepo()
	classes := &mockClassEdgeRepo{mockClassRepo: mockClassRepo{classes: map[string]*models.Class{
		"c-1": {ID: "c-1", Name: "Grade 10A"},
	}}}
	users := newMockUserRepo()
	users.add(&models.User{ID: "t-1", Role: models.RoleTeacher, Status: models.StatusApproved, Name: "Mr. Diaz"})
	users.add(&models.User{ID: "s-1", Role: models.RoleStudent, Status: models.StatusApproved, Name: "Ana"})
	students := &mockStudentLister{}
	cache := newMockKVCache()
	svc := NewSubjectService(subjects, classes, users, students, cache, &mockAuditRepo{}, validator.New(), zap.NewNop(), time.Minute)
	return svc, subjects, cache
}

func TestCreateSubject(t *testing.T) {
	t.Run("creates and assigns teacher", func(t *testing.T) {
		svc, subjects, _ := newSubjectFixture()

		subject, err := svc.Create(context.Background(), "a-1", CreateSubjectRequest{Name: "Mathematics", ClassID: "c-1", TeacherID: "t-1"})
		require.NoError(t, err)
		assert.Equal(t, "sub-created", subject.ID)
		assert.Equal(t, 1, subjects.creates)
	})

	t.Run("duplicate name in class conflicts", func(t *testing.T) {
		svc, subjects, _ := newSubjectFixture()
		subjects.names["Mathematics|c-1"] = true

		_, err := svc.Create(context.Background(), "a-1", CreateSubjectRequest{Name: "Mathematics", ClassID: "c-1", TeacherID: "t-1"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
		assert.Zero(t, subjects.creates)
	})

	t.Run("unknown class not found", func(t *testing.T) {
		svc, _, _ := newSubjectFixture()
		_, err := svc.Create(context.Background(), "a-1", CreateSubjectRequest{Name: "Mathematics", ClassID: "missing", TeacherID: "t-1"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	})

	t.Run("teacher reference must be a teacher", func(t *testing.T) {
		svc, _, _ := newSubjectFixture()
		_, err := svc.Create(context.Background(), "a-1", CreateSubjectRequest{Name: "Mathematics", ClassID: "c-1", TeacherID: "s-1"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	})
}

func TestStudentSubjects(t *testing.T) {
	svc, subjects, cache := newSubjectFixture()
	subjects.byClass = []models.SubjectDetail{
		{Subject: models.Subject{ID: "sub-1", Name: "Mathematics", ClassID: "c-1", TeacherID: "t-1"}},
	}

	classID := "c-1"
	student := &models.User{ID: "s-1", Role: models.RoleStudent, Status: models.StatusApproved, ClassID: &classID}

	got, err := svc.StudentSubjects(context.Background(), student)
	require.NoError(t, err)
	require.Len(t, got, 1)

	subjects.listErr = assert.AnError
	got, err = svc.StudentSubjects(context.Background(), student)
	require.NoError(t, err, "second read served from cache")
	require.Len(t, got, 1)
	assert.NotEmpty(t, cache.values)

	t.Run("pending student denied", func(t *testing.T) {
		pending := &models.User{ID: "s-2", Role: models.RoleStudent, Status: models.StatusPending, ClassID: &classID}
		_, err := svc.StudentSubjects(context.Background(), pending)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrPendingApproval.Code, appErrors.FromError(err).Code)
	})
}
