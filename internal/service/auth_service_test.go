package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
)

type mockUserRepo struct {
	usersByEmail map[string]*models.User
	usersByID    map[string]*models.User
	created      []*models.User
	createErr    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{usersByEmail: map[string]*models.User{}, usersByID: map[string]*models.User{}}
}

func (m *mockUserRepo) add(u *models.User) {
	m.usersByEmail[u.Email] = u
	m.usersByID[u.ID] = u
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := m.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.usersByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, ok := m.usersByEmail[email]
	return ok, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if user.ID == "" {
		user.ID = "generated"
	}
	m.created = append(m.created, user)
	m.add(user)
	return nil
}

type mockClassRepo struct {
	classes map[string]*models.Class
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c, nil
}

type mockAuditRepo struct {
	entries []*models.AuditLog
}

func (m *mockAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

func newAuthService(users *mockUserRepo, classes *mockClassRepo) *AuthService {
	v := validator.New()
	_ = RegisterRoleValidation(v)
	return NewAuthService(users, classes, &mockAuditRepo{}, v, zap.NewNop(), AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: 30 * 24 * time.Hour,
		Issuer:      "lms-api",
	})
}

func TestRegisterStudent(t *testing.T) {
	users := newMockUserRepo()
	classes := &mockClassRepo{classes: map[string]*models.Class{"c-1": {ID: "c-1", Name: "Grade 10A"}}}
	svc := newAuthService(users, classes)

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:      "Ana",
		Email:     "ana@example.com",
		Password:  "secret1",
		ContactNo: "555-0101",
		RollNo:    "12",
		ClassID:   "c-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.Equal(t, models.StatusPending, res.User.Status)

	require.Len(t, users.created, 1)
	created := users.created[0]
	assert.Equal(t, models.StatusPending, created.Status)
	require.NotNil(t, created.ClassID)
	assert.Equal(t, "c-1", *created.ClassID)
	assert.NotEqual(t, "secret1", created.PasswordHash)
}

func TestRegisterStudentUnknownClass(t *testing.T) {
	users := newMockUserRepo()
	classes := &mockClassRepo{classes: map[string]*models.Class{}}
	svc := newAuthService(users, classes)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:      "Ana",
		Email:     "ana@example.com",
		Password:  "secret1",
		ContactNo: "555-0101",
		RollNo:    "12",
		ClassID:   "missing",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, users.created)
}

func TestRegisterTeacherApprovedImmediately(t *testing.T) {
	users := newMockUserRepo()
	svc := newAuthService(users, &mockClassRepo{})

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:      "Mr. Diaz",
		Email:     "diaz@example.com",
		Password:  "secret1",
		ContactNo: "555-0102",
		Role:      string(models.RoleTeacher),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, res.User.Status)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newMockUserRepo()
	users.add(&models.User{ID: "u-1", Email: "ana@example.com"})
	svc := newAuthService(users, &mockClassRepo{})

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Name:      "Ana",
		Email:     "ana@example.com",
		Password:  "secret1",
		ContactNo: "555-0101",
		Role:      string(models.RoleTeacher),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLoginSuccess(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	users := newMockUserRepo()
	users.add(&models.User{ID: "u-1", Email: "diaz@example.com", PasswordHash: string(hash), Role: models.RoleTeacher, Status: models.StatusApproved})
	svc := newAuthService(users, &mockClassRepo{})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "diaz@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64((30 * 24 * time.Hour).Seconds()), res.ExpiresIn)
}

func TestLoginPendingStudentDenied(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	users := newMockUserRepo()
	users.add(&models.User{ID: "s-1", Email: "ana@example.com", PasswordHash: string(hash), Role: models.RoleStudent, Status: models.StatusPending})
	svc := newAuthService(users, &mockClassRepo{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPendingApproval.Code, appErrors.FromError(err).Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	users := newMockUserRepo()
	users.add(&models.User{ID: "u-1", Email: "diaz@example.com", PasswordHash: string(hash), Role: models.RoleTeacher, Status: models.StatusApproved})
	svc := newAuthService(users, &mockClassRepo{})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(context.Background(), models.LoginRequest{Email: "diaz@example.com", Password: "wrong"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "password"})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
	})
}

func TestValidateToken(t *testing.T) {
	users := newMockUserRepo()
	svc := newAuthService(users, &mockClassRepo{})
	user := &models.User{ID: "u-1", Email: "diaz@example.com", Role: models.RoleTeacher, Name: "Mr. Diaz"}

	token, _, err := svc.generateToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)

	_, err = svc.ValidateToken(token + "tampered")
	require.Error(t, err)
}
