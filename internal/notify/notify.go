// Package notify builds communication records and email payloads for the
// notification fan-out. Functions here are pure: they take the already-loaded
// material, subject and recipient rows and return the rows to insert, leaving
// persistence to the repository layer and delivery to the mail queue.
package notify

import (
	"fmt"

	"github.com/edulink/lms-api/internal/models"
	"github.com/edulink/lms-api/pkg/mailer"
)

// MaterialUploaded returns one unread communication per recipient announcing
// a new material. Recipients are the approved students of the subject's
// class; callers pass them pre-filtered. An empty recipient list yields an
// empty slice, never nil handling surprises downstream.
func MaterialUploaded(material *models.Material, subject *models.Subject, recipients []models.User) []models.Communication {
	comms := make([]models.Communication, 0, len(recipients))
	message := fmt.Sprintf("New %s material %q added to %s", material.Type, material.Title, subject.Name)
	for _, r := range recipients {
		recipientID := r.ID
		subjectID := subject.ID
		classID := subject.ClassID
		comms = append(comms, models.Communication{
			SenderID:    material.CreatedBy,
			RecipientID: &recipientID,
			SubjectID:   &subjectID,
			ClassID:     &classID,
			Message:     message,
			Status:      models.CommunicationUnread,
		})
	}
	return comms
}

// StudentQuery returns the communication for a student asking the subject's
// teacher a question. It is addressed to the responsible teacher and tagged
// with the subject so the teacher can list queries per subject.
func StudentQuery(student *models.User, subject *models.Subject, message string) models.Communication {
	teacherID := subject.TeacherID
	subjectID := subject.ID
	comm := models.Communication{
		SenderID:    student.ID,
		RecipientID: &teacherID,
		SubjectID:   &subjectID,
		Message:     message,
		Status:      models.CommunicationUnread,
	}
	if student.ClassID != nil {
		classID := *student.ClassID
		comm.ClassID = &classID
	}
	return comm
}

// Reply returns the communication answering an earlier message. The reply
// goes back to the original sender, inherits the subject and class tags, and
// records the original as its parent so threads can be reassembled.
func Reply(actor *models.User, original *models.Communication, message string) models.Communication {
	senderID := original.SenderID
	parentID := original.ID
	reply := models.Communication{
		SenderID:    actor.ID,
		RecipientID: &senderID,
		Message:     message,
		Status:      models.CommunicationUnread,
		ParentID:    &parentID,
	}
	if original.SubjectID != nil {
		subjectID := *original.SubjectID
		reply.SubjectID = &subjectID
	}
	if original.ClassID != nil {
		classID := *original.ClassID
		reply.ClassID = &classID
	}
	return reply
}

// MaterialEmail builds the mail mirroring a fan-out communication.
func MaterialEmail(recipient models.User, material *models.Material, subject *models.Subject) mailer.Message {
	return mailer.Message{
		ToName:  recipient.Name,
		ToEmail: recipient.Email,
		Subject: fmt.Sprintf("New material in %s", subject.Name),
		Text: fmt.Sprintf("Hi %s,\n\nNew %s material %q has been added to %s. Log in to view it.\n",
			recipient.Name, material.Type, material.Title, subject.Name),
	}
}

// ReplyEmail builds the mail mirroring a teacher's reply.
func ReplyEmail(recipient models.User, sender *models.User, subjectName string) mailer.Message {
	return mailer.Message{
		ToName:  recipient.Name,
		ToEmail: recipient.Email,
		Subject: fmt.Sprintf("Reply from %s", sender.Name),
		Text: fmt.Sprintf("Hi %s,\n\n%s replied to your question about %s. Log in to read the answer.\n",
			recipient.Name, sender.Name, subjectName),
	}
}

// ApprovalEmail builds the mail telling a student their account decision.
func ApprovalEmail(student models.User, approved bool) mailer.Message {
	if approved {
		return mailer.Message{
			ToName:  student.Name,
			ToEmail: student.Email,
			Subject: "Your account has been approved",
			Text:    fmt.Sprintf("Hi %s,\n\nYour account has been approved. You can now log in.\n", student.Name),
		}
	}
	return mailer.Message{
		ToName:  student.Name,
		ToEmail: student.Email,
		Subject: "Your account request was not approved",
		Text:    fmt.Sprintf("Hi %s,\n\nYour account request was not approved. Contact the school office for details.\n", student.Name),
	}
}
