package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edulink/lms-api/internal/models"
	"github.com/edulink/lms-api/internal/notify"
	"github.com/edulink/lms-api/internal/policy"
	"github.com/edulink/lms-api/internal/repository"
	appErrors "github.com/edulink/lms-api/pkg/errors"
	"github.com/edulink/lms-api/pkg/jobs"
)

type materialRepository interface {
	FindByID(ctx context.Context, id string) (*models.Material, error)
	CreateWithFanOut(ctx context.Context, material *models.Material, comms []models.Communication) error
	ListBySubject(ctx context.Context, subjectID string) ([]models.MaterialDetail, error)
}

type materialSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type fileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	URL(filename string) string
}

type cacheInvalidator interface {
	Delete(ctx context.Context, key string) error
}

// UploadMaterialRequest uploads a material into a subject. The file itself
// arrives as a multipart stream alongside this metadata.
type UploadMaterialRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Type        string `json:"type" validate:"required"`
	SubjectID   string `json:"subject_id" validate:"required"`
}

// MaterialService handles material uploads, the notification fan-out they
// trigger, and material reads.
type MaterialService struct {
	materials materialRepository
	subjects  materialSubjectRepository
	students  subjectStudentLister
	store     fileStore
	cache     cacheInvalidator
	mail      mailEnqueuer
	metrics   *MetricsService
	audits    auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMaterialService constructs a MaterialService instance.
func NewMaterialService(materials materialRepository, subjects materialSubjectRepository, students subjectStudentLister, store fileStore, cache cacheInvalidator, mail mailEnqueuer, metrics *MetricsService, audits auditWriter, validate *validator.Validate, logger *zap.Logger) *MaterialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MaterialService{materials: materials, subjects: subjects, students: students, store: store, cache: cache, mail: mail, metrics: metrics, audits: audits, validator: validate, logger: logger}
}

// Upload stores the file, then commits the material together with one unread
// notification per approved student of the subject's class. A storage or
// database failure aborts the whole upload; the mirrored emails are queued
// afterwards and never block the response.
func (s *MaterialService) Upload(ctx context.Context, actor *models.User, req UploadMaterialRequest, filename string, file io.Reader) (*models.Material, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}
	if !models.ValidMaterialType(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be one of notes, video, audio, document")
	}

	subject, err := s.loadSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	if err := policy.TeacherOwnsSubject(actor, subject); err != nil {
		return nil, err
	}

	students, err := s.students.ListApprovedStudentsByClass(ctx, subject.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDependencyFailed.Code, appErrors.ErrDependencyFailed.Status, "failed to resolve notification recipients")
	}

	storedName := fmt.Sprintf("%s%s", uuid.NewString(), sanitizeExt(filename))
	if _, err := s.store.SaveStream(storedName, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDependencyFailed.Code, appErrors.ErrDependencyFailed.Status, "failed to store file")
	}

	material := &models.Material{
		Title:       req.Title,
		Description: req.Description,
		Type:        models.MaterialType(req.Type),
		FileURL:     s.store.URL(storedName),
		SubjectID:   subject.ID,
		CreatedBy:   actor.ID,
	}
	comms := notify.MaterialUploaded(material, subject, students)

	if err := s.materials.CreateWithFanOut(ctx, material, comms); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDependencyFailed.Code, appErrors.ErrDependencyFailed.Status, "failed to save material")
	}

	s.metrics.ObserveUpload(req.Type)
	s.metrics.ObserveFanOut(len(students))

	for _, student := range students {
		if s.cache != nil {
			if err := s.cache.Delete(ctx, repository.UnreadCountKey(student.ID)); err != nil {
				s.logger.Warn("failed to invalidate unread count cache", zap.Error(err), zap.String("user_id", student.ID))
			}
		}
		if s.mail != nil {
			msg := notify.MaterialEmail(student, material, subject)
			if err := s.mail.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeEmail, Payload: msg}); err != nil {
				s.logger.Warn("failed to enqueue material email", zap.Error(err), zap.String("user_id", student.ID))
				continue
			}
			s.metrics.ObserveEmailEnqueued()
		}
	}

	if err := s.audits.Create(ctx, &models.AuditLog{
		UserID:     &actor.ID,
		Action:     models.AuditActionMaterialNew,
		Resource:   "material",
		ResourceID: &material.ID,
		NewValues:  []byte(fmt.Sprintf(`{"type":%q,"recipients":%d}`, material.Type, len(students))),
	}); err != nil {
		s.logger.Warn("failed to record material upload audit log", zap.Error(err))
	}

	return material, nil
}

// Get returns a single material after the per-role access check.
func (s *MaterialService) Get(ctx context.Context, actor *models.User, materialID string) (*models.Material, error) {
	material, err := s.materials.FindByID(ctx, materialID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}

	subject, err := s.loadSubject(ctx, material.SubjectID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanReadMaterial(actor, subject); err != nil {
		return nil, err
	}
	return material, nil
}

// ListBySubject returns the materials of a subject, newest first, after the
// per-role access check.
func (s *MaterialService) ListBySubject(ctx context.Context, actor *models.User, subjectID string) ([]models.MaterialDetail, error) {
	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanReadMaterial(actor, subject); err != nil {
		return nil, err
	}

	materials, err := s.materials.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return materials, nil
}

func (s *MaterialService) loadSubject(ctx context.Context, subjectID string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 {
		return ""
	}
	return ext
}
