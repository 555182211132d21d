package models

import "time"

// Subject belongs to exactly one class and is taught by exactly one teacher.
// The teacher reference is fixed at creation; (name, class) is unique.
type Subject struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	ClassID     string    `db:"class_id" json:"class_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectDetail joins teacher and class names for responses.
type SubjectDetail struct {
	Subject
	TeacherName  string `db:"teacher_name" json:"teacher_name"`
	TeacherEmail string `db:"teacher_email" json:"teacher_email"`
	ClassName    string `db:"class_name" json:"class_name"`
}
