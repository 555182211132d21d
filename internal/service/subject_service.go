package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edulink/lms-api/internal/models"
	"github.com/edulink/lms-api/internal/policy"
	"github.com/edulink/lms-api/internal/repository"
	appErrors "github.com/edulink/lms-api/pkg/errors"
)

type subjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	FindDetailByID(ctx context.Context, id string) (*models.SubjectDetail, error)
	ExistsByNameInClass(ctx context.Context, name, classID string) (bool, error)
	CreateWithClassAssignment(ctx context.Context, subject *models.Subject) error
	ListByClass(ctx context.Context, classID string) ([]models.SubjectDetail, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.SubjectDetail, error)
	List(ctx context.Context, page, pageSize int) ([]models.SubjectDetail, int, error)
}

type subjectCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type subjectStudentLister interface {
	ListApprovedStudentsByClass(ctx context.Context, classID string) ([]models.User, error)
}

// CreateSubjectRequest creates a subject inside a class.
type CreateSubjectRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	ClassID     string `json:"class_id" validate:"required"`
	TeacherID   string `json:"teacher_id" validate:"required"`
}

// SubjectService provides subject management use cases.
type SubjectService struct {
	subjects  subjectRepository
	classes   classRepository
	users     classUserRepository
	students  subjectStudentLister
	cache     subjectCache
	audits    auditWriter
	validator *validator.Validate
	logger    *zap.Logger
	listTTL   time.Duration
}

// NewSubjectService constructs a SubjectService instance.
func NewSubjectService(subjects subjectRepository, classes classRepository, users classUserRepository, students subjectStudentLister, cache subjectCache, audits auditWriter, validate *validator.Validate, logger *zap.Logger, listTTL time.Duration) *SubjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if listTTL <= 0 {
		listTTL = 5 * time.Minute
	}
	return &SubjectService{subjects: subjects, classes: classes, users: users, students: students, cache: cache, audits: audits, validator: validate, logger: logger, listTTL: listTTL}
}

// Create creates a subject and assigns its teacher to the class in the same
// transaction. The subject name must be unique within the class and the
// teacher reference must name a teacher account.
func (s *SubjectService) Create(ctx context.Context, actorID string, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not a teacher")
	}

	exists, err := s.subjects.ExistsByNameInClass(ctx, req.Name, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "the class already has a subject with this name")
	}

	subject := &models.Subject{
		Name:        req.Name,
		Description: req.Description,
		ClassID:     req.ClassID,
		TeacherID:   req.TeacherID,
	}
	if err := s.subjects.CreateWithClassAssignment(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, repository.SubjectListKey(req.ClassID)); err != nil {
			s.logger.Warn("failed to invalidate subject list cache", zap.Error(err))
		}
	}

	if err := s.audits.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionSubjectCreate,
		Resource:   "subject",
		ResourceID: &subject.ID,
	}); err != nil {
		s.logger.Warn("failed to record subject creation audit log", zap.Error(err))
	}

	return subject, nil
}

// List returns all subjects with teacher and class context, paginated.
func (s *SubjectService) List(ctx context.Context, page, pageSize int) ([]models.SubjectDetail, *models.Pagination, error) {
	subjects, total, err := s.subjects.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return subjects, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// StudentSubjects returns the subjects of the student's own class. The list
// is cached per class.
func (s *SubjectService) StudentSubjects(ctx context.Context, actor *models.User) ([]models.SubjectDetail, error) {
	if err := policy.RequireRole(actor, models.RoleStudent); err != nil {
		return nil, err
	}
	if err := policy.RequireApprovedStudent(actor); err != nil {
		return nil, err
	}
	if actor.ClassID == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to a class")
	}
	classID := *actor.ClassID

	if s.cache != nil {
		var cached []models.SubjectDetail
		if err := s.cache.Get(ctx, repository.SubjectListKey(classID), &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("subject list cache read failed", zap.Error(err))
		}
	}

	subjects, err := s.subjects.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, repository.SubjectListKey(classID), subjects, s.listTTL); err != nil {
			s.logger.Warn("subject list cache write failed", zap.Error(err))
		}
	}
	return subjects, nil
}

// TeacherSubjects returns the subjects the teacher is responsible for.
func (s *SubjectService) TeacherSubjects(ctx context.Context, actor *models.User) ([]models.SubjectDetail, error) {
	if err := policy.RequireRole(actor, models.RoleTeacher); err != nil {
		return nil, err
	}
	subjects, err := s.subjects.ListByTeacher(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// SubjectStudents returns the approved students of a subject's class. Only
// the subject's teacher or an admin may list them.
func (s *SubjectService) SubjectStudents(ctx context.Context, actor *models.User, subjectID string) ([]models.User, error) {
	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		if err := policy.TeacherOwnsSubject(actor, subject); err != nil {
			return nil, err
		}
	}

	students, err := s.students.ListApprovedStudentsByClass(ctx, subject.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

func (s *SubjectService) loadSubject(ctx context.Context, subjectID string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}
