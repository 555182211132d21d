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

const userColumns = "id, email, password_hash, name, contact_no, role, status, roll_no, class_id, profile_pic, created_at, updated_at"

// UserRepository provides database access for accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1 LIMIT 1", userColumns)
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ExistsByEmail reports whether an account already uses the email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, email); err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new account.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, name, contact_no, role, status, roll_no, class_id, profile_pic, created_at, updated_at) VALUES (:id, :email, :password_hash, :name, :contact_no, :role, :status, :roll_no, :class_id, :profile_pic, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateStatus sets the approval status of an account.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	const query = `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return nil
}

// UpdateProfile updates the mutable profile fields of an account.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET name = :name, contact_no = :contact_no, profile_pic = :profile_pic, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

// List returns accounts matching the filter with a total count. Student rows
// carry their class name when assigned.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.UserDetail, int, error) {
	baseQuery := `FROM users u LEFT JOIN classes c ON c.id = u.class_id WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("u.role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("u.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("u.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(u.email) LIKE $%d OR LOWER(u.name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"email":      true,
		"name":       true,
		"created_at": true,
		"updated_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
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

	listQuery := fmt.Sprintf("SELECT u.id, u.email, u.password_hash, u.name, u.contact_no, u.role, u.status, u.roll_no, u.class_id, u.profile_pic, u.created_at, u.updated_at, c.name AS class_name %s ORDER BY u.%s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)

	var users []models.UserDetail
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	return users, total, nil
}

// ListAllByRole returns every account of a role, optionally scoped to a
// class, without pagination. Export snapshots cover the full roster.
func (r *UserRepository) ListAllByRole(ctx context.Context, role models.UserRole, classID string) ([]models.UserDetail, error) {
	query := `SELECT u.id, u.email, u.password_hash, u.name, u.contact_no, u.role, u.status, u.roll_no, u.class_id, u.profile_pic, u.created_at, u.updated_at, c.name AS class_name FROM users u LEFT JOIN classes c ON c.id = u.class_id WHERE u.role = $1`
	args := []interface{}{role}
	if classID != "" {
		query += " AND u.class_id = $2"
		args = append(args, classID)
	}
	query += " ORDER BY u.name ASC"

	var users []models.UserDetail
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return users, nil
}

// ListApprovedStudentsByClass returns the approved students of a class. This
// is the recipient set of the material fan-out.
func (r *UserRepository) ListApprovedStudentsByClass(ctx context.Context, classID string) ([]models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE class_id = $1 AND role = $2 AND status = $3 ORDER BY name ASC", userColumns)
	var students []models.User
	if err := r.db.SelectContext(ctx, &students, query, classID, models.RoleStudent, models.StatusApproved); err != nil {
		return nil, fmt.Errorf("list approved students: %w", err)
	}
	return students, nil
}

// ListPendingStudentsByClasses returns pending students across the given
// classes, joined with their class name for review listings.
func (r *UserRepository) ListPendingStudentsByClasses(ctx context.Context, classIDs []string) ([]models.UserDetail, error) {
	if len(classIDs) == 0 {
		return []models.UserDetail{}, nil
	}
	query, args, err := sqlx.In(`SELECT u.id, u.email, u.password_hash, u.name, u.contact_no, u.role, u.status, u.roll_no, u.class_id, u.profile_pic, u.created_at, u.updated_at, c.name AS class_name FROM users u JOIN classes c ON c.id = u.class_id WHERE u.role = ? AND u.status = ? AND u.class_id IN (?) ORDER BY u.created_at ASC`, models.RoleStudent, models.StatusPending, classIDs)
	if err != nil {
		return nil, fmt.Errorf("build pending students query: %w", err)
	}
	query = r.db.Rebind(query)

	var students []models.UserDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list pending students: %w", err)
	}
	return students, nil
}
