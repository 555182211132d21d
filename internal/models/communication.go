package models

import "time"

// CommunicationStatus tracks the read state of a communication. The
// transition is one-directional: unread records become read and stay read.
type CommunicationStatus string

const (
	CommunicationUnread CommunicationStatus = "unread"
	CommunicationRead   CommunicationStatus = "read"
)

// Communication is a notification or message record. It is created by a
// student query, a teacher reply, or the material fan-out, and is never
// deleted. At least one of RecipientID and ClassID must be set. ParentID
// links replies to the message they answer, forming a thread.
type Communication struct {
	ID          string              `db:"id" json:"id"`
	SenderID    string              `db:"sender_id" json:"sender_id"`
	RecipientID *string             `db:"recipient_id" json:"recipient_id,omitempty"`
	ClassID     *string             `db:"class_id" json:"class_id,omitempty"`
	SubjectID   *string             `db:"subject_id" json:"subject_id,omitempty"`
	Message     string              `db:"message" json:"message"`
	Status      CommunicationStatus `db:"status" json:"status"`
	ParentID    *string             `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"created_at"`
}

// Validate enforces the structural invariants checked before any persistence
// attempt.
func (c *Communication) Validate() error {
	if c.SenderID == "" {
		return errMissingSender
	}
	if c.Message == "" {
		return errMissingMessage
	}
	if c.RecipientID == nil && c.ClassID == nil {
		return errMissingTarget
	}
	return nil
}

type validationError string

func (e validationError) Error() string { return string(e) }

const (
	errMissingSender  = validationError("communication requires a sender")
	errMissingMessage = validationError("communication requires a message")
	errMissingTarget  = validationError("communication requires a recipient or a class")
)

// CommunicationDetail joins sender context for responses.
type CommunicationDetail struct {
	Communication
	SenderName  string   `db:"sender_name" json:"sender_name"`
	SenderRole  UserRole `db:"sender_role" json:"sender_role"`
	SubjectName *string  `db:"subject_name" json:"subject_name,omitempty"`
}
