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

// MaterialRepository provides database access for course materials.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository creates a new instance of MaterialRepository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// FindByID returns a material by identifier.
func (r *MaterialRepository) FindByID(ctx context.Context, id string) (*models.Material, error) {
	const query = `SELECT id, title, description, type, file_url, subject_id, created_by, created_at FROM materials WHERE id = $1 LIMIT 1`
	var material models.Material
	if err := r.db.GetContext(ctx, &material, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find material by id: %w", err)
	}
	return &material, nil
}

// CreateWithFanOut inserts the material and its notification batch in one
// transaction. A failure in either insert rolls back both, so a stored
// material always has its notifications.
func (r *MaterialRepository) CreateWithFanOut(ctx context.Context, material *models.Material, comms []models.Communication) error {
	if material.ID == "" {
		material.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if material.CreatedAt.IsZero() {
		material.CreatedAt = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin material create: %w", err)
	}
	defer tx.Rollback()

	const materialQuery = `INSERT INTO materials (id, title, description, type, file_url, subject_id, created_by, created_at) VALUES (:id, :title, :description, :type, :file_url, :subject_id, :created_by, :created_at)`
	if _, err := tx.NamedExecContext(ctx, materialQuery, material); err != nil {
		return fmt.Errorf("create material: %w", err)
	}

	const commQuery = `INSERT INTO communications (id, sender_id, recipient_id, class_id, subject_id, message, status, parent_id, created_at) VALUES (:id, :sender_id, :recipient_id, :class_id, :subject_id, :message, :status, :parent_id, :created_at)`
	for i := range comms {
		if comms[i].ID == "" {
			comms[i].ID = uuid.NewString()
		}
		if comms[i].CreatedAt.IsZero() {
			comms[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, commQuery, &comms[i]); err != nil {
			return fmt.Errorf("create fan-out communication: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit material create: %w", err)
	}
	return nil
}

// ListBySubject returns the materials of a subject, newest first, with
// uploader and subject names resolved.
func (r *MaterialRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.MaterialDetail, error) {
	const query = `SELECT m.id, m.title, m.description, m.type, m.file_url, m.subject_id, m.created_by, m.created_at, u.name AS uploader_name, s.name AS subject_name FROM materials m JOIN users u ON u.id = m.created_by JOIN subjects s ON s.id = m.subject_id WHERE m.subject_id = $1 ORDER BY m.created_at DESC`
	var materials []models.MaterialDetail
	if err := r.db.SelectContext(ctx, &materials, query, subjectID); err != nil {
		return nil, fmt.Errorf("list materials by subject: %w", err)
	}
	return materials, nil
}

// CountBySubject returns the number of materials stored for a subject.
func (r *MaterialRepository) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM materials WHERE subject_id = $1", subjectID); err != nil {
		return 0, fmt.Errorf("count materials: %w", err)
	}
	return total, nil
}
