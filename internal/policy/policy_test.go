package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
)

func strPtr(s string) *string { return &s }

func approvedStudent(classID string) *models.User {
	return &models.User{
		ID:      "student-1",
		Role:    models.RoleStudent,
		Status:  models.StatusApproved,
		ClassID: strPtr(classID),
	}
}

func TestRequireRole(t *testing.T) {
	teacher := &models.User{ID: "t-1", Role: models.RoleTeacher}

	t.Run("nil actor is unauthenticated", func(t *testing.T) {
		err := RequireRole(nil, models.RoleAdmin)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, err.Code)
	})

	t.Run("role in allowed set", func(t *testing.T) {
		assert.Nil(t, RequireRole(teacher, models.RoleAdmin, models.RoleTeacher))
	})

	t.Run("role outside allowed set", func(t *testing.T) {
		err := RequireRole(teacher, models.RoleAdmin)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})
}

func TestRequireApprovedStudent(t *testing.T) {
	t.Run("pending student denied", func(t *testing.T) {
		pending := &models.User{ID: "s-1", Role: models.RoleStudent, Status: models.StatusPending}
		err := RequireApprovedStudent(pending)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrPendingApproval.Code, err.Code)
	})

	t.Run("rejected student denied", func(t *testing.T) {
		rejected := &models.User{ID: "s-1", Role: models.RoleStudent, Status: models.StatusRejected}
		err := RequireApprovedStudent(rejected)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrPendingApproval.Code, err.Code)
	})

	t.Run("approved student permitted", func(t *testing.T) {
		assert.Nil(t, RequireApprovedStudent(approvedStudent("c-1")))
	})

	t.Run("gate only applies to students", func(t *testing.T) {
		teacher := &models.User{ID: "t-1", Role: models.RoleTeacher, Status: models.StatusPending}
		assert.Nil(t, RequireApprovedStudent(teacher))
	})
}

func TestStudentCanAccessSubject(t *testing.T) {
	subject := &models.Subject{ID: "sub-1", ClassID: "c-1", TeacherID: "t-1"}

	t.Run("own class permitted", func(t *testing.T) {
		assert.Nil(t, StudentCanAccessSubject(approvedStudent("c-1"), subject))
	})

	t.Run("other class forbidden", func(t *testing.T) {
		err := StudentCanAccessSubject(approvedStudent("c-2"), subject)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})

	t.Run("no class assignment forbidden", func(t *testing.T) {
		unassigned := &models.User{ID: "s-1", Role: models.RoleStudent, Status: models.StatusApproved}
		err := StudentCanAccessSubject(unassigned, subject)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})

	t.Run("approval gate precedes class check", func(t *testing.T) {
		pending := &models.User{ID: "s-1", Role: models.RoleStudent, Status: models.StatusPending, ClassID: strPtr("c-1")}
		err := StudentCanAccessSubject(pending, subject)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrPendingApproval.Code, err.Code)
	})

	t.Run("teacher role forbidden on student rule", func(t *testing.T) {
		teacher := &models.User{ID: "t-1", Role: models.RoleTeacher}
		err := StudentCanAccessSubject(teacher, subject)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})
}

func TestTeacherOwnsSubject(t *testing.T) {
	subject := &models.Subject{ID: "sub-1", ClassID: "c-1", TeacherID: "t-1"}

	t.Run("owning teacher permitted", func(t *testing.T) {
		owner := &models.User{ID: "t-1", Role: models.RoleTeacher}
		assert.Nil(t, TeacherOwnsSubject(owner, subject))
	})

	t.Run("other teacher forbidden", func(t *testing.T) {
		other := &models.User{ID: "t-2", Role: models.RoleTeacher}
		err := TeacherOwnsSubject(other, subject)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})

	t.Run("missing subject not found", func(t *testing.T) {
		owner := &models.User{ID: "t-1", Role: models.RoleTeacher}
		err := TeacherOwnsSubject(owner, nil)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, err.Code)
	})
}

func TestCanReadMaterial(t *testing.T) {
	subject := &models.Subject{ID: "sub-1", ClassID: "c-1", TeacherID: "t-1"}

	t.Run("admin always permitted", func(t *testing.T) {
		admin := &models.User{ID: "a-1", Role: models.RoleAdmin}
		assert.Nil(t, CanReadMaterial(admin, subject))
	})

	t.Run("student of class permitted", func(t *testing.T) {
		assert.Nil(t, CanReadMaterial(approvedStudent("c-1"), subject))
	})

	t.Run("student of other class forbidden", func(t *testing.T) {
		err := CanReadMaterial(approvedStudent("c-2"), subject)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})

	t.Run("teacher of subject permitted", func(t *testing.T) {
		owner := &models.User{ID: "t-1", Role: models.RoleTeacher}
		assert.Nil(t, CanReadMaterial(owner, subject))
	})

	t.Run("teacher of other subject forbidden", func(t *testing.T) {
		other := &models.User{ID: "t-2", Role: models.RoleTeacher}
		err := CanReadMaterial(other, subject)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})
}

func TestTeacherCanModerateStudent(t *testing.T) {
	student := approvedStudent("c-1")
	student.Status = models.StatusPending

	t.Run("class teacher permitted", func(t *testing.T) {
		teacher := &models.User{ID: "t-1", Role: models.RoleTeacher}
		assert.Nil(t, TeacherCanModerateStudent(teacher, student, []string{"t-1", "t-2"}))
	})

	t.Run("unrelated teacher forbidden", func(t *testing.T) {
		teacher := &models.User{ID: "t-9", Role: models.RoleTeacher}
		err := TeacherCanModerateStudent(teacher, student, []string{"t-1", "t-2"})
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})

	t.Run("admin bypasses class membership", func(t *testing.T) {
		admin := &models.User{ID: "a-1", Role: models.RoleAdmin}
		assert.Nil(t, TeacherCanModerateStudent(admin, student, nil))
	})

	t.Run("target must be a student", func(t *testing.T) {
		teacher := &models.User{ID: "t-1", Role: models.RoleTeacher}
		notStudent := &models.User{ID: "t-2", Role: models.RoleTeacher}
		err := TeacherCanModerateStudent(teacher, notStudent, []string{"t-1"})
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, err.Code)
	})
}

func TestCanReply(t *testing.T) {
	original := &models.Communication{
		ID:          "comm-1",
		SenderID:    "s-1",
		RecipientID: strPtr("t-1"),
		Message:     "When is the test?",
		Status:      models.CommunicationUnread,
	}

	t.Run("recipient may reply", func(t *testing.T) {
		teacher := &models.User{ID: "t-1", Role: models.RoleTeacher}
		assert.Nil(t, CanReply(teacher, original))
	})

	t.Run("non-recipient forbidden", func(t *testing.T) {
		other := &models.User{ID: "t-2", Role: models.RoleTeacher}
		err := CanReply(other, original)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})

	t.Run("sender cannot reply to own message", func(t *testing.T) {
		sender := &models.User{ID: "s-1", Role: models.RoleStudent, Status: models.StatusApproved}
		err := CanReply(sender, original)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})

	t.Run("broadcast without recipient forbidden", func(t *testing.T) {
		broadcast := &models.Communication{ID: "comm-2", SenderID: "t-1", ClassID: strPtr("c-1")}
		teacher := &models.User{ID: "t-1", Role: models.RoleTeacher}
		err := CanReply(teacher, broadcast)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrForbidden.Code, err.Code)
	})
}

func TestCanMarkRead(t *testing.T) {
	comm := &models.Communication{
		ID:          "comm-1",
		SenderID:    "t-1",
		RecipientID: strPtr("s-1"),
		Status:      models.CommunicationUnread,
	}

	t.Run("recipient permitted", func(t *testing.T) {
		student := approvedStudent("c-1")
		student.ID = "s-1"
		assert.Nil(t, CanMarkRead(student, comm))
	})

	t.Run("other user sees not found", func(t *testing.T) {
		intruder := approvedStudent("c-1")
		intruder.ID = "s-2"
		err := CanMarkRead(intruder, comm)
		require.NotNil(t, err)
		assert.Equal(t, appErrors.ErrNotFound.Code, err.Code)
	})
}
