package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
)

type userRepository interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, int, error)
}

// AddTeacherRequest creates a teacher account on behalf of an admin.
type AddTeacherRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	ContactNo  string `json:"contact_no" validate:"required"`
	ProfilePic string `json:"profile_pic"`
}

// UserService provides account listing and admin-driven account creation.
type UserService struct {
	users     userRepository
	audits    auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(users userRepository, audits auditWriter, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{users: users, audits: audits, validator: validate, logger: logger}
}

// AddTeacher creates an approved teacher account.
func (s *UserService) AddTeacher(ctx context.Context, actorID string, req AddTeacherRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid teacher payload")
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	teacher := &models.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		ContactNo:    req.ContactNo,
		Role:         models.RoleTeacher,
		Status:       models.StatusApproved,
		ProfilePic:   req.ProfilePic,
	}
	if err := s.users.Create(ctx, teacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create teacher")
	}

	if err := s.audits.Create(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionRegister,
		Resource:   "user",
		ResourceID: &teacher.ID,
		NewValues:  []byte(`{"role":"TEACHER"}`),
	}); err != nil {
		s.logger.Warn("failed to record teacher creation audit log", zap.Error(err))
	}

	return teacher, nil
}

// ListTeachers returns teacher accounts matching the filter.
func (s *UserService) ListTeachers(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, *models.Pagination, error) {
	role := models.RoleTeacher
	filter.Role = &role
	return s.list(ctx, filter)
}

// ListStudents returns student accounts matching the filter, joined with
// their class names.
func (s *UserService) ListStudents(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, *models.Pagination, error) {
	role := models.RoleStudent
	filter.Role = &role
	return s.list(ctx, filter)
}

func (s *UserService) list(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, *models.Pagination, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}
