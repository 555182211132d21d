package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edulink/lms-api/internal/models"
	"github.com/edulink/lms-api/internal/notify"
	"github.com/edulink/lms-api/internal/policy"
	appErrors "github.com/edulink/lms-api/pkg/errors"
	"github.com/edulink/lms-api/pkg/jobs"
)

// JobTypeEmail tags queued jobs that carry a mailer.Message payload.
const JobTypeEmail = "email"

type mailEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type studentUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
	ListPendingStudentsByClasses(ctx context.Context, classIDs []string) ([]models.UserDetail, error)
}

type studentClassRepository interface {
	ListTeacherIDs(ctx context.Context, classID string) ([]string, error)
	ListClassIDsByTeacher(ctx context.Context, teacherID string) ([]string, error)
}

// StudentService handles the student approval workflow.
type StudentService struct {
	users   studentUserRepository
	classes studentClassRepository
	audits  auditWriter
	mail    mailEnqueuer
	logger  *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(users studentUserRepository, classes studentClassRepository, audits auditWriter, mail mailEnqueuer, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{users: users, classes: classes, audits: audits, mail: mail, logger: logger}
}

// PendingStudents returns the pending students across the actor's assigned
// classes.
func (s *StudentService) PendingStudents(ctx context.Context, actor *models.User) ([]models.UserDetail, error) {
	if err := policy.RequireRole(actor, models.RoleTeacher, models.RoleAdmin); err != nil {
		return nil, err
	}

	classIDs, err := s.classes.ListClassIDsByTeacher(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}

	students, err := s.users.ListPendingStudentsByClasses(ctx, classIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending students")
	}
	return students, nil
}

// UpdateStatus approves or rejects a pending student. Only teachers of the
// student's class (or an admin) may decide, and the student is notified by
// email once the decision lands.
func (s *StudentService) UpdateStatus(ctx context.Context, actor *models.User, studentID string, status models.UserStatus) (*models.User, error) {
	if status != models.StatusApproved && status != models.StatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be APPROVED or REJECTED")
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	var teacherIDs []string
	if student.ClassID != nil {
		teacherIDs, err = s.classes.ListTeacherIDs(ctx, *student.ClassID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class teachers")
		}
	}
	if err := policy.TeacherCanModerateStudent(actor, student, teacherIDs); err != nil {
		return nil, err
	}

	if err := s.users.UpdateStatus(ctx, studentID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student status")
	}
	student.Status = status

	if err := s.audits.Create(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionStatusChange,
		Resource:   "user",
		ResourceID: &student.ID,
		NewValues:  []byte(fmt.Sprintf(`{"status":%q}`, status)),
	}); err != nil {
		s.logger.Warn("failed to record status change audit log", zap.Error(err))
	}

	if s.mail != nil {
		msg := notify.ApprovalEmail(*student, status == models.StatusApproved)
		if err := s.mail.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeEmail, Payload: msg}); err != nil {
			s.logger.Warn("failed to enqueue approval email", zap.Error(err), zap.String("student_id", student.ID))
		}
	}

	return student, nil
}
