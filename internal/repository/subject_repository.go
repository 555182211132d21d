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

const subjectDetailColumns = `s.id, s.name, s.description, s.class_id, s.teacher_id, s.created_at, s.updated_at, t.name AS teacher_name, t.email AS teacher_email, c.name AS class_name`

// SubjectRepository provides database access for subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new instance of SubjectRepository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID returns a subject by identifier.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	const query = `SELECT id, name, description, class_id, teacher_id, created_at, updated_at FROM subjects WHERE id = $1 LIMIT 1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject by id: %w", err)
	}
	return &subject, nil
}

// FindDetailByID returns a subject joined with teacher and class context.
func (r *SubjectRepository) FindDetailByID(ctx context.Context, id string) (*models.SubjectDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects s JOIN users t ON t.id = s.teacher_id JOIN classes c ON c.id = s.class_id WHERE s.id = $1 LIMIT 1", subjectDetailColumns)
	var detail models.SubjectDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find subject detail: %w", err)
	}
	return &detail, nil
}

// ExistsByNameInClass reports whether the class already has a subject with
// the name. Name uniqueness is scoped to the class, not global.
func (r *SubjectRepository) ExistsByNameInClass(ctx context.Context, name, classID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM subjects WHERE LOWER(name) = LOWER($1) AND class_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name, classID); err != nil {
		return false, fmt.Errorf("check subject name exists: %w", err)
	}
	return exists, nil
}

// CreateWithClassAssignment inserts the subject and ensures its teacher is
// assigned to the class, in one transaction. Either both rows land or
// neither does.
func (r *SubjectRepository) CreateWithClassAssignment(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin subject create: %w", err)
	}
	defer tx.Rollback()

	const assignQuery = `INSERT INTO class_teachers (class_id, teacher_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (class_id, teacher_id) DO NOTHING`
	if _, err := tx.ExecContext(ctx, assignQuery, subject.ClassID, subject.TeacherID, now); err != nil {
		return fmt.Errorf("assign teacher on subject create: %w", err)
	}

	const subjectQuery = `INSERT INTO subjects (id, name, description, class_id, teacher_id, created_at, updated_at) VALUES (:id, :name, :description, :class_id, :teacher_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, subjectQuery, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit subject create: %w", err)
	}
	return nil
}

// ListByClass returns the subjects of a class with teacher context.
func (r *SubjectRepository) ListByClass(ctx context.Context, classID string) ([]models.SubjectDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects s JOIN users t ON t.id = s.teacher_id JOIN classes c ON c.id = s.class_id WHERE s.class_id = $1 ORDER BY s.name ASC", subjectDetailColumns)
	var subjects []models.SubjectDetail
	if err := r.db.SelectContext(ctx, &subjects, query, classID); err != nil {
		return nil, fmt.Errorf("list subjects by class: %w", err)
	}
	return subjects, nil
}

// ListByTeacher returns the subjects a teacher is responsible for.
func (r *SubjectRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.SubjectDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects s JOIN users t ON t.id = s.teacher_id JOIN classes c ON c.id = s.class_id WHERE s.teacher_id = $1 ORDER BY c.name ASC, s.name ASC", subjectDetailColumns)
	var subjects []models.SubjectDetail
	if err := r.db.SelectContext(ctx, &subjects, query, teacherID); err != nil {
		return nil, fmt.Errorf("list subjects by teacher: %w", err)
	}
	return subjects, nil
}

// ListAll returns every subject with teacher and class context, without
// pagination. Export snapshots cover the full catalogue.
func (r *SubjectRepository) ListAll(ctx context.Context) ([]models.SubjectDetail, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects s JOIN users t ON t.id = s.teacher_id JOIN classes c ON c.id = s.class_id ORDER BY c.name ASC, s.name ASC", subjectDetailColumns)
	var subjects []models.SubjectDetail
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list all subjects: %w", err)
	}
	return subjects, nil
}

// List returns all subjects with teacher and class context, paginated.
func (r *SubjectRepository) List(ctx context.Context, page, pageSize int) ([]models.SubjectDetail, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s FROM subjects s JOIN users t ON t.id = s.teacher_id JOIN classes c ON c.id = s.class_id ORDER BY c.name ASC, s.name ASC LIMIT %d OFFSET %d", subjectDetailColumns, pageSize, offset)
	var subjects []models.SubjectDetail
	if err := r.db.SelectContext(ctx, &subjects, listQuery); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM subjects"); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}
