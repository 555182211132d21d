package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edulink/lms-api/internal/models"
)

const commColumns = "id, sender_id, recipient_id, class_id, subject_id, message, status, parent_id, created_at"

const commDetailSelect = `SELECT c.id, c.sender_id, c.recipient_id, c.class_id, c.subject_id, c.message, c.status, c.parent_id, c.created_at, u.name AS sender_name, u.role AS sender_role, s.name AS subject_name FROM communications c JOIN users u ON u.id = c.sender_id LEFT JOIN subjects s ON s.id = c.subject_id`

// CommunicationRepository provides database access for messages and
// notifications.
type CommunicationRepository struct {
	db *sqlx.DB
}

// NewCommunicationRepository creates a new instance of CommunicationRepository.
func NewCommunicationRepository(db *sqlx.DB) *CommunicationRepository {
	return &CommunicationRepository{db: db}
}

// FindByID returns a communication by identifier.
func (r *CommunicationRepository) FindByID(ctx context.Context, id string) (*models.Communication, error) {
	query := fmt.Sprintf("SELECT %s FROM communications WHERE id = $1 LIMIT 1", commColumns)
	var comm models.Communication
	if err := r.db.GetContext(ctx, &comm, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find communication by id: %w", err)
	}
	return &comm, nil
}

// Create inserts a single communication.
func (r *CommunicationRepository) Create(ctx context.Context, comm *models.Communication) error {
	if comm.ID == "" {
		comm.ID = uuid.NewString()
	}
	if comm.CreatedAt.IsZero() {
		comm.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO communications (id, sender_id, recipient_id, class_id, subject_id, message, status, parent_id, created_at) VALUES (:id, :sender_id, :recipient_id, :class_id, :subject_id, :message, :status, :parent_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comm); err != nil {
		return fmt.Errorf("create communication: %w", err)
	}
	return nil
}

// CreateReply inserts the reply and flips the original to read in one
// transaction. Answering a message implies having read it.
func (r *CommunicationRepository) CreateReply(ctx context.Context, reply *models.Communication, originalID string) error {
	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reply create: %w", err)
	}
	defer tx.Rollback()

	const insertQuery = `INSERT INTO communications (id, sender_id, recipient_id, class_id, subject_id, message, status, parent_id, created_at) VALUES (:id, :sender_id, :recipient_id, :class_id, :subject_id, :message, :status, :parent_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, reply); err != nil {
		return fmt.Errorf("create reply: %w", err)
	}

	const flipQuery = `UPDATE communications SET status = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, flipQuery, originalID, models.CommunicationRead); err != nil {
		return fmt.Errorf("mark original read: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reply create: %w", err)
	}
	return nil
}

// MarkRead flips a communication to read. Already-read rows are left alone,
// so repeated calls are harmless.
func (r *CommunicationRepository) MarkRead(ctx context.Context, id string) error {
	const query = `UPDATE communications SET status = $2 WHERE id = $1 AND status <> $2`
	if _, err := r.db.ExecContext(ctx, query, id, models.CommunicationRead); err != nil {
		return fmt.Errorf("mark communication read: %w", err)
	}
	return nil
}

// ListByRecipient returns the communications addressed to a user, newest
// first. This backs the notification inbox.
func (r *CommunicationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.CommunicationDetail, error) {
	query := commDetailSelect + " WHERE c.recipient_id = $1"
	args := []interface{}{recipientID}
	if unreadOnly {
		query += " AND c.status = $2"
		args = append(args, models.CommunicationUnread)
	}
	query += " ORDER BY c.created_at DESC"

	var comms []models.CommunicationDetail
	if err := r.db.SelectContext(ctx, &comms, query, args...); err != nil {
		return nil, fmt.Errorf("list communications by recipient: %w", err)
	}
	return comms, nil
}

// ListBySender returns the communications a user has sent, newest first.
func (r *CommunicationRepository) ListBySender(ctx context.Context, senderID string) ([]models.CommunicationDetail, error) {
	query := commDetailSelect + " WHERE c.sender_id = $1 ORDER BY c.created_at DESC"
	var comms []models.CommunicationDetail
	if err := r.db.SelectContext(ctx, &comms, query, senderID); err != nil {
		return nil, fmt.Errorf("list communications by sender: %w", err)
	}
	return comms, nil
}

// ListForSubjectRecipient returns the communications of one subject addressed
// to a user, oldest first. Teachers use this to review student queries.
func (r *CommunicationRepository) ListForSubjectRecipient(ctx context.Context, subjectID, recipientID string) ([]models.CommunicationDetail, error) {
	query := commDetailSelect + " WHERE c.subject_id = $1 AND c.recipient_id = $2 ORDER BY c.created_at ASC"
	var comms []models.CommunicationDetail
	if err := r.db.SelectContext(ctx, &comms, query, subjectID, recipientID); err != nil {
		return nil, fmt.Errorf("list subject communications: %w", err)
	}
	return comms, nil
}

// ListBetween returns the communications exchanged between two users in
// either direction, oldest first.
func (r *CommunicationRepository) ListBetween(ctx context.Context, userID, otherID string) ([]models.CommunicationDetail, error) {
	query := commDetailSelect + " WHERE (c.sender_id = $1 AND c.recipient_id = $2) OR (c.sender_id = $2 AND c.recipient_id = $1) ORDER BY c.created_at ASC"
	var comms []models.CommunicationDetail
	if err := r.db.SelectContext(ctx, &comms, query, userID, otherID); err != nil {
		return nil, fmt.Errorf("list communications between users: %w", err)
	}
	return comms, nil
}

// ListThread returns a root communication and every reply beneath it, oldest
// first.
func (r *CommunicationRepository) ListThread(ctx context.Context, rootID string) ([]models.CommunicationDetail, error) {
	const query = `WITH RECURSIVE thread AS (
		SELECT id, sender_id, recipient_id, class_id, subject_id, message, status, parent_id, created_at FROM communications WHERE id = $1
		UNION ALL
		SELECT c.id, c.sender_id, c.recipient_id, c.class_id, c.subject_id, c.message, c.status, c.parent_id, c.created_at FROM communications c JOIN thread t ON c.parent_id = t.id
	)
	SELECT t.id, t.sender_id, t.recipient_id, t.class_id, t.subject_id, t.message, t.status, t.parent_id, t.created_at, u.name AS sender_name, u.role AS sender_role, s.name AS subject_name FROM thread t JOIN users u ON u.id = t.sender_id LEFT JOIN subjects s ON s.id = t.subject_id ORDER BY t.created_at ASC`

	var comms []models.CommunicationDetail
	if err := r.db.SelectContext(ctx, &comms, query, rootID); err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	return comms, nil
}

// CountUnread returns the number of unread communications addressed to a
// user.
func (r *CommunicationRepository) CountUnread(ctx context.Context, recipientID string) (int, error) {
	const query = `SELECT COUNT(*) FROM communications WHERE recipient_id = $1 AND status = $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, recipientID, models.CommunicationUnread); err != nil {
		return 0, fmt.Errorf("count unread communications: %w", err)
	}
	return total, nil
}
