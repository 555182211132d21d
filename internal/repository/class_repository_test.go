package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/lms-api/internal/models"
)

func TestClassCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("INSERT INTO classes").WillReturnResult(sqlmock.NewResult(1, 1))

	class := &models.Class{Name: "Grade 10A", Description: "Science track"}
	err := repo.Create(context.Background(), class)
	require.NoError(t, err)
	assert.NotEmpty(t, class.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignTeacher(t *testing.T) {
	t.Run("new assignment", func(t *testing.T) {
		db, mock, cleanup := newMock(t)
		defer cleanup()
		repo := NewClassRepository(db)

		mock.ExpectExec("INSERT INTO class_teachers").
			WithArgs("c-1", "t-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		inserted, err := repo.AssignTeacher(context.Background(), "c-1", "t-1")
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate pair reports false", func(t *testing.T) {
		db, mock, cleanup := newMock(t)
		defer cleanup()
		repo := NewClassRepository(db)

		mock.ExpectExec("INSERT INTO class_teachers").
			WithArgs("c-1", "t-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 0))

		inserted, err := repo.AssignTeacher(context.Background(), "c-1", "t-1")
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListTeachers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "email"}).
		AddRow("t-1", "Mr. Diaz", "diaz@example.com").
		AddRow("t-2", "Ms. Wong", "wong@example.com")
	mock.ExpectQuery("FROM class_teachers ct JOIN users u ON u.id = ct.teacher_id WHERE ct.class_id = \\$1").
		WithArgs("c-1").
		WillReturnRows(rows)

	teachers, err := repo.ListTeachers(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, "Mr. Diaz", teachers[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows([]string{"id", "name", "description", "created_at", "updated_at"}).
		AddRow("c-1", "Grade 10A", "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, description, created_at, updated_at FROM classes WHERE 1=1 ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM classes WHERE 1=1")).WillReturnRows(countRows)

	classes, total, err := repo.List(context.Background(), models.ClassFilter{})
	require.NoError(t, err)
	assert.Len(t, classes, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassListByTeacher(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	rows := sqlmock.NewRows([]string{"class_id"}).AddRow("c-1").AddRow("c-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT class_id FROM class_teachers WHERE teacher_id = $1")).
		WithArgs("t-1").
		WillReturnRows(rows)

	ids, err := repo.ListClassIDsByTeacher(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c-1", "c-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
