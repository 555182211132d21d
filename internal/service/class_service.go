package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
)

type classRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	AssignTeacher(ctx context.Context, classID, teacherID string) (bool, error)
	ListTeachers(ctx context.Context, classID string) ([]models.TeacherRef, error)
}

type classSubjectRepository interface {
	ListByClass(ctx context.Context, classID string) ([]models.SubjectDetail, error)
}

type classUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateClassRequest creates a class.
type CreateClassRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// AssignTeacherRequest attaches a teacher to a class.
type AssignTeacherRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
}

// ClassService provides class management use cases.
type ClassService struct {
	classes   classRepository
	subjects  classSubjectRepository
	users     classUserRepository
	audits    auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService instance.
func NewClassService(classes classRepository, subjects classSubjectRepository, users classUserRepository, audits auditWriter, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{classes: classes, subjects: subjects, users: users, audits: audits, validator: validate, logger: logger}
}

// CreateClass creates a class with a unique name.
func (s *ClassService) CreateClass(ctx context.Context, actorID string, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	exists, err := s.classes.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a class with this name already exists")
	}

	class := &models.Class{Name: req.Name, Description: req.Description}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	if err := s.audits.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionClassCreate,
		Resource:   "class",
		ResourceID: &class.ID,
	}); err != nil {
		s.logger.Warn("failed to record class creation audit log", zap.Error(err))
	}

	return class, nil
}

// AssignTeacher attaches a teacher to a class. Assigning an already-assigned
// teacher is a conflict.
func (s *ClassService) AssignTeacher(ctx context.Context, classID string, req AssignTeacherRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	if _, err := s.classes.FindByID(ctx, classID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	teacher, err := s.users.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrValidation, "user is not a teacher")
	}

	inserted, err := s.classes.AssignTeacher(ctx, classID, req.TeacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign teacher")
	}
	if !inserted {
		return appErrors.Clone(appErrors.ErrConflict, "teacher is already assigned to this class")
	}
	return nil
}

// ListClasses returns classes with their teachers and subjects resolved.
func (s *ClassService) ListClasses(ctx context.Context, filter models.ClassFilter) ([]models.ClassOverview, *models.Pagination, error) {
	classes, total, err := s.classes.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	overviews := make([]models.ClassOverview, 0, len(classes))
	for _, class := range classes {
		teachers, err := s.classes.ListTeachers(ctx, class.ID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class teachers")
		}
		subjects, err := s.subjects.ListByClass(ctx, class.ID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class subjects")
		}
		overviews = append(overviews, models.ClassOverview{Class: class, Teachers: teachers, Subjects: subjects})
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return overviews, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// TeacherClasses returns the classes a teacher is assigned to, each listing
// only the subjects that teacher is responsible for.
func (s *ClassService) TeacherClasses(ctx context.Context, teacherID string) ([]models.ClassOverview, error) {
	overviews, _, err := s.ListClasses(ctx, models.ClassFilter{TeacherID: teacherID, PageSize: 100})
	if err != nil {
		return nil, err
	}
	for i := range overviews {
		own := make([]models.SubjectDetail, 0, len(overviews[i].Subjects))
		for _, subject := range overviews[i].Subjects {
			if subject.TeacherID == teacherID {
				own = append(own, subject)
			}
		}
		overviews[i].Subjects = own
	}
	return overviews, nil
}
