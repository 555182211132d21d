// Package policy is the pure access-control core. Every function takes the
// facts it reasons over as arguments (the actor plus the already-loaded
// resource records) and returns nil to permit or a typed error to deny. No
// function here performs I/O, so every decision is O(1) over its inputs.
//
// Rules evaluate in a fixed priority: authentication, then the action's
// allowed-role set, then the student approval gate, then ownership equality
// checks on the resource. Class-level teacher membership and subject-level
// teacher ownership are independent facts: a teacher auto-assigned to a class
// by subject creation owns only their own subjects, and approving students
// requires class membership regardless of subject ownership.
package policy

import (
	"github.com/edulink/lms-api/internal/models"
	appErrors "github.com/edulink/lms-api/pkg/errors"
)

// RequireRole denies with Unauthenticated when actor is absent and with
// Forbidden when the actor's role is outside the allowed set. It is the first
// gate of every protected operation.
func RequireRole(actor *models.User, allowed ...models.UserRole) *appErrors.Error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	for _, role := range allowed {
		if actor.Role == role {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, string(actor.Role)+" is not authorized for this action")
}

// RequireApprovedStudent applies the approval gate. It runs before any
// resource-specific check for student actions: an unapproved student has no
// valid resource scope yet.
func RequireApprovedStudent(actor *models.User) *appErrors.Error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStudent && actor.Status != models.StatusApproved {
		return appErrors.ErrPendingApproval
	}
	return nil
}

// StudentCanAccessClass permits a student to read class-scoped listings only
// for their own class.
func StudentCanAccessClass(actor *models.User, classID string) *appErrors.Error {
	if err := RequireRole(actor, models.RoleStudent); err != nil {
		return err
	}
	if err := RequireApprovedStudent(actor); err != nil {
		return err
	}
	if !actor.InClass(classID) {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not have access to this class")
	}
	return nil
}

// StudentCanAccessSubject permits a student to read a subject's content
// (materials, teacher queries) only when the subject belongs to their class.
func StudentCanAccessSubject(actor *models.User, subject *models.Subject) *appErrors.Error {
	if subject == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	return StudentCanAccessClass(actor, subject.ClassID)
}

// TeacherOwnsSubject permits a teacher to act on a subject only when they are
// its responsible teacher. Class membership alone does not grant ownership.
func TeacherOwnsSubject(actor *models.User, subject *models.Subject) *appErrors.Error {
	if err := RequireRole(actor, models.RoleTeacher); err != nil {
		return err
	}
	if subject == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	if subject.TeacherID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not assigned to this subject")
	}
	return nil
}

// CanReadMaterial dispatches the per-role access rule for a single material:
// students need the owning subject in their class, teachers need subject
// ownership, admins are always permitted.
func CanReadMaterial(actor *models.User, subject *models.Subject) *appErrors.Error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if subject == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeacher:
		return TeacherOwnsSubject(actor, subject)
	case models.RoleStudent:
		return StudentCanAccessSubject(actor, subject)
	default:
		return appErrors.Clone(appErrors.ErrForbidden, string(actor.Role)+" is not authorized for this action")
	}
}

// TeacherCanModerateStudent permits approving or rejecting a student only for
// teachers assigned to the student's class. classTeacherIDs are the teacher
// references of that class. Admins pass unconditionally.
func TeacherCanModerateStudent(actor *models.User, student *models.User, classTeacherIDs []string) *appErrors.Error {
	if err := RequireRole(actor, models.RoleTeacher, models.RoleAdmin); err != nil {
		return err
	}
	if student == nil || student.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	for _, id := range classTeacherIDs {
		if id == actor.ID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "you are not authorized to approve or reject this student")
}

// CanReply permits replying to a communication only for its recipient.
func CanReply(actor *models.User, original *models.Communication) *appErrors.Error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if original == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "communication not found")
	}
	if original.RecipientID == nil || *original.RecipientID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "you are not authorized to reply to this message")
	}
	return nil
}

// CanMarkRead permits flipping a communication to read only for its
// recipient. The flip itself is idempotent; this only guards who may do it.
func CanMarkRead(actor *models.User, comm *models.Communication) *appErrors.Error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if comm == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "communication not found")
	}
	if comm.RecipientID == nil || *comm.RecipientID != actor.ID {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	return nil
}
