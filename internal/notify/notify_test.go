package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulink/lms-api/internal/models"
)

func strPtr(s string) *string { return &s }

func TestMaterialUploaded(t *testing.T) {
	material := &models.Material{
		ID:        "m-1",
		Title:     "Algebra Basics",
		Type:      models.MaterialNotes,
		SubjectID: "sub-1",
		CreatedBy: "t-1",
	}
	subject := &models.Subject{ID: "sub-1", Name: "Mathematics", ClassID: "c-1", TeacherID: "t-1"}

	t.Run("one record per recipient", func(t *testing.T) {
		recipients := []models.User{
			{ID: "s-1", Name: "Ana"},
			{ID: "s-2", Name: "Ben"},
			{ID: "s-3", Name: "Cleo"},
		}

		comms := MaterialUploaded(material, subject, recipients)
		require.Len(t, comms, 3)

		seen := make(map[string]bool)
		for _, c := range comms {
			assert.Equal(t, "t-1", c.SenderID)
			require.NotNil(t, c.RecipientID)
			assert.False(t, seen[*c.RecipientID], "duplicate recipient %s", *c.RecipientID)
			seen[*c.RecipientID] = true
			require.NotNil(t, c.SubjectID)
			assert.Equal(t, "sub-1", *c.SubjectID)
			require.NotNil(t, c.ClassID)
			assert.Equal(t, "c-1", *c.ClassID)
			assert.Equal(t, models.CommunicationUnread, c.Status)
			assert.Equal(t, `New notes material "Algebra Basics" added to Mathematics`, c.Message)
			assert.Nil(t, c.ParentID)
		}
	})

	t.Run("no recipients yields empty slice", func(t *testing.T) {
		comms := MaterialUploaded(material, subject, nil)
		assert.NotNil(t, comms)
		assert.Empty(t, comms)
	})
}

func TestStudentQuery(t *testing.T) {
	student := &models.User{ID: "s-1", Role: models.RoleStudent, ClassID: strPtr("c-1")}
	subject := &models.Subject{ID: "sub-1", Name: "Physics", ClassID: "c-1", TeacherID: "t-1"}

	comm := StudentQuery(student, subject, "When is the practical exam?")

	assert.Equal(t, "s-1", comm.SenderID)
	require.NotNil(t, comm.RecipientID)
	assert.Equal(t, "t-1", *comm.RecipientID)
	require.NotNil(t, comm.SubjectID)
	assert.Equal(t, "sub-1", *comm.SubjectID)
	require.NotNil(t, comm.ClassID)
	assert.Equal(t, "c-1", *comm.ClassID)
	assert.Equal(t, models.CommunicationUnread, comm.Status)
	assert.Nil(t, comm.ParentID)
}

func TestReply(t *testing.T) {
	teacher := &models.User{ID: "t-1", Role: models.RoleTeacher}
	original := &models.Communication{
		ID:          "comm-1",
		SenderID:    "s-1",
		RecipientID: strPtr("t-1"),
		SubjectID:   strPtr("sub-1"),
		ClassID:     strPtr("c-1"),
		Message:     "When is the practical exam?",
		Status:      models.CommunicationUnread,
	}

	reply := Reply(teacher, original, "Next Friday at 10am.")

	assert.Equal(t, "t-1", reply.SenderID)
	require.NotNil(t, reply.RecipientID)
	assert.Equal(t, "s-1", *reply.RecipientID)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, "comm-1", *reply.ParentID)
	require.NotNil(t, reply.SubjectID)
	assert.Equal(t, "sub-1", *reply.SubjectID)
	require.NotNil(t, reply.ClassID)
	assert.Equal(t, "c-1", *reply.ClassID)
	assert.Equal(t, models.CommunicationUnread, reply.Status)

	t.Run("without subject tag", func(t *testing.T) {
		bare := &models.Communication{ID: "comm-2", SenderID: "s-1", RecipientID: strPtr("t-1")}
		reply := Reply(teacher, bare, "Noted.")
		assert.Nil(t, reply.SubjectID)
		assert.Nil(t, reply.ClassID)
	})
}

func TestEmails(t *testing.T) {
	material := &models.Material{Title: "Waves", Type: models.MaterialVideo}
	subject := &models.Subject{Name: "Physics"}
	student := models.User{Name: "Ana", Email: "ana@example.com"}

	t.Run("material", func(t *testing.T) {
		msg := MaterialEmail(student, material, subject)
		assert.Equal(t, "ana@example.com", msg.ToEmail)
		assert.Contains(t, msg.Subject, "Physics")
		assert.Contains(t, msg.Text, "Waves")
	})

	t.Run("reply", func(t *testing.T) {
		teacher := &models.User{Name: "Mr. Diaz"}
		msg := ReplyEmail(student, teacher, "Physics")
		assert.Contains(t, msg.Subject, "Mr. Diaz")
		assert.Contains(t, msg.Text, "Physics")
	})

	t.Run("approval", func(t *testing.T) {
		approved := ApprovalEmail(student, true)
		assert.Contains(t, approved.Text, "approved")
		rejected := ApprovalEmail(student, false)
		assert.Contains(t, rejected.Text, "not approved")
	})
}
