package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edulink/lms-api/internal/models"
)

// ClassRepository provides database access for classes and the class-teacher
// assignment edge.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new instance of ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, description, created_at, updated_at FROM classes WHERE id = $1 LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// ExistsByName reports whether a class with the name already exists.
func (r *ClassRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM classes WHERE LOWER(name) = LOWER($1))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, name); err != nil {
		return false, fmt.Errorf("check class name exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, name, description, created_at, updated_at) VALUES (:id, :name, :description, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// List returns classes matching the filter with a total count.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	baseQuery := `FROM classes WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("id IN (SELECT class_id FROM class_teachers WHERE teacher_id = $%d)", len(args)+1))
		args = append(args, filter.TeacherID)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, name, description, created_at, updated_at %s ORDER BY name ASC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}

	return classes, total, nil
}

// AssignTeacher inserts a class-teacher edge. The returned bool is false when
// the pair already existed.
func (r *ClassRepository) AssignTeacher(ctx context.Context, classID, teacherID string) (bool, error) {
	const query = `INSERT INTO class_teachers (class_id, teacher_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (class_id, teacher_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, classID, teacherID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("assign teacher to class: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("assign teacher to class: %w", err)
	}
	return affected > 0, nil
}

// ListTeachers returns the teachers assigned to a class.
func (r *ClassRepository) ListTeachers(ctx context.Context, classID string) ([]models.TeacherRef, error) {
	const query = `SELECT u.id, u.name, u.email FROM class_teachers ct JOIN users u ON u.id = ct.teacher_id WHERE ct.class_id = $1 ORDER BY u.name ASC`
	var teachers []models.TeacherRef
	if err := r.db.SelectContext(ctx, &teachers, query, classID); err != nil {
		return nil, fmt.Errorf("list class teachers: %w", err)
	}
	return teachers, nil
}

// ListTeacherIDs returns the identifiers of the teachers assigned to a class.
func (r *ClassRepository) ListTeacherIDs(ctx context.Context, classID string) ([]string, error) {
	const query = `SELECT teacher_id FROM class_teachers WHERE class_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, classID); err != nil {
		return nil, fmt.Errorf("list class teacher ids: %w", err)
	}
	return ids, nil
}

// ListClassIDsByTeacher returns the identifiers of the classes a teacher is
// assigned to.
func (r *ClassRepository) ListClassIDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	const query = `SELECT class_id FROM class_teachers WHERE teacher_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher class ids: %w", err)
	}
	return ids, nil
}
