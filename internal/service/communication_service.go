package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

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

type communicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Communication, error)
	Create(ctx context.Context, comm *models.Communication) error
	CreateReply(ctx context.Context, reply *models.Communication, originalID string) error
	MarkRead(ctx context.Context, id string) error
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.CommunicationDetail, error)
	ListBySender(ctx context.Context, senderID string) ([]models.CommunicationDetail, error)
	ListForSubjectRecipient(ctx context.Context, subjectID, recipientID string) ([]models.CommunicationDetail, error)
	ListBetween(ctx context.Context, userID, otherID string) ([]models.CommunicationDetail, error)
	ListThread(ctx context.Context, rootID string) ([]models.CommunicationDetail, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
}

type communicationCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type communicationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SendQueryRequest asks a subject's teacher a question.
type SendQueryRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

// ReplyRequest answers a received communication.
type ReplyRequest struct {
	Message string `json:"message" validate:"required"`
}

// CommunicationService handles queries, replies, notifications and read
// state.
type CommunicationService struct {
	comms     communicationRepository
	subjects  materialSubjectRepository
	users     communicationUserRepository
	cache     communicationCache
	mail      mailEnqueuer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	unreadTTL time.Duration
}

// NewCommunicationService constructs a CommunicationService instance.
func NewCommunicationService(comms communicationRepository, subjects materialSubjectRepository, users communicationUserRepository, cache communicationCache, mail mailEnqueuer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, unreadTTL time.Duration) *CommunicationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if unreadTTL <= 0 {
		unreadTTL = time.Minute
	}
	return &CommunicationService{comms: comms, subjects: subjects, users: users, cache: cache, mail: mail, metrics: metrics, validator: validate, logger: logger, unreadTTL: unreadTTL}
}

// SendQuery creates a student question addressed to the subject's teacher.
// The student must belong to the subject's class.
func (s *CommunicationService) SendQuery(ctx context.Context, actor *models.User, req SendQueryRequest) (*models.Communication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query payload")
	}

	subject, err := s.loadSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	if err := policy.StudentCanAccessSubject(actor, subject); err != nil {
		return nil, err
	}

	comm := notify.StudentQuery(actor, subject, req.Message)
	if err := comm.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if err := s.comms.Create(ctx, &comm); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send query")
	}

	s.invalidateUnread(ctx, subject.TeacherID)
	return &comm, nil
}

// Reply answers a communication. Only the recipient may reply; the reply is
// linked to the original, which is flipped to read in the same transaction.
func (s *CommunicationService) Reply(ctx context.Context, actor *models.User, originalID string, req ReplyRequest) (*models.Communication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reply payload")
	}

	original, err := s.comms.FindByID(ctx, originalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "communication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load communication")
	}
	if err := policy.CanReply(actor, original); err != nil {
		return nil, err
	}

	reply := notify.Reply(actor, original, req.Message)
	if err := s.comms.CreateReply(ctx, &reply, original.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send reply")
	}

	s.invalidateUnread(ctx, original.SenderID)
	s.invalidateUnread(ctx, actor.ID)

	if s.mail != nil {
		if recipient, err := s.users.FindByID(ctx, original.SenderID); err == nil {
			subjectName := ""
			if original.SubjectID != nil {
				if subject, err := s.subjects.FindByID(ctx, *original.SubjectID); err == nil {
					subjectName = subject.Name
				}
			}
			msg := notify.ReplyEmail(*recipient, actor, subjectName)
			if err := s.mail.Enqueue(jobs.Job{ID: uuid.NewString(), Type: JobTypeEmail, Payload: msg}); err != nil {
				s.logger.Warn("failed to enqueue reply email", zap.Error(err))
			} else {
				s.metrics.ObserveEmailEnqueued()
			}
		} else {
			s.logger.Warn("failed to load reply recipient", zap.Error(err), zap.String("user_id", original.SenderID))
		}
	}

	return &reply, nil
}

// Notifications returns the communications addressed to the actor, newest
// first.
func (s *CommunicationService) Notifications(ctx context.Context, actor *models.User, unreadOnly bool) ([]models.CommunicationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := policy.RequireApprovedStudent(actor); err != nil {
		return nil, err
	}
	comms, err := s.comms.ListByRecipient(ctx, actor.ID, unreadOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return comms, nil
}

// Sent returns the communications the actor has sent, newest first.
func (s *CommunicationService) Sent(ctx context.Context, actor *models.User) ([]models.CommunicationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	comms, err := s.comms.ListBySender(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sent communications")
	}
	return comms, nil
}

// SubjectQueries returns the communications of one subject addressed to the
// actor. Teachers use this to review student questions per subject.
func (s *CommunicationService) SubjectQueries(ctx context.Context, actor *models.User, subjectID string) ([]models.CommunicationDetail, error) {
	subject, err := s.loadSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if err := policy.TeacherOwnsSubject(actor, subject); err != nil {
		return nil, err
	}

	comms, err := s.comms.ListForSubjectRecipient(ctx, subjectID, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subject queries")
	}
	return comms, nil
}

// ConversationWith returns every communication exchanged between the actor
// and another user, oldest first. Students use this to review their exchange
// with a teacher.
func (s *CommunicationService) ConversationWith(ctx context.Context, actor *models.User, otherID string) ([]models.CommunicationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := policy.RequireApprovedStudent(actor); err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, otherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	comms, err := s.comms.ListBetween(ctx, actor.ID, otherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list conversation")
	}
	return comms, nil
}

// Thread returns a communication and every reply beneath it. Only the
// participants of the root message may read the thread.
func (s *CommunicationService) Thread(ctx context.Context, actor *models.User, rootID string) ([]models.CommunicationDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	root, err := s.comms.FindByID(ctx, rootID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "communication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load communication")
	}

	participant := root.SenderID == actor.ID || (root.RecipientID != nil && *root.RecipientID == actor.ID)
	if !participant && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "communication not found")
	}

	thread, err := s.comms.ListThread(ctx, rootID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list thread")
	}
	return thread, nil
}

// MarkRead flips a communication addressed to the actor to read. Marking an
// already-read communication is a no-op, not an error.
func (s *CommunicationService) MarkRead(ctx context.Context, actor *models.User, commID string) error {
	comm, err := s.comms.FindByID(ctx, commID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load communication")
	}
	if err := policy.CanMarkRead(actor, comm); err != nil {
		return err
	}
	if comm.Status == models.CommunicationRead {
		return nil
	}

	if err := s.comms.MarkRead(ctx, commID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	s.invalidateUnread(ctx, actor.ID)
	return nil
}

// UnreadCount returns the number of unread communications addressed to the
// actor. The count is cached briefly.
func (s *CommunicationService) UnreadCount(ctx context.Context, actor *models.User) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	key := repository.UnreadCountKey(actor.ID)

	if s.cache != nil {
		var cached int
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return cached, nil
		} else if errors.Is(err, appErrors.ErrCacheMiss) {
			s.metrics.RecordCacheOperation(false)
		} else {
			s.logger.Warn("unread count cache read failed", zap.Error(err))
		}
	}

	count, err := s.comms.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, count, s.unreadTTL); err != nil {
			s.logger.Warn("unread count cache write failed", zap.Error(err))
		}
	}
	return count, nil
}

func (s *CommunicationService) invalidateUnread(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, repository.UnreadCountKey(userID)); err != nil {
		s.logger.Warn("failed to invalidate unread count cache", zap.Error(err), zap.String("user_id", userID))
	}
}

func (s *CommunicationService) loadSubject(ctx context.Context, subjectID string) (*models.Subject, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}
