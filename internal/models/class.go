package models

import "time"

// Class represents a class that students enroll into. Teachers attach to a
// class through the class_teachers edge, either explicitly by an admin or
// implicitly when a subject is created for them.
type Class struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ClassTeacher is a row of the class_teachers edge table. The (class, teacher)
// pair is unique.
type ClassTeacher struct {
	ClassID   string    `db:"class_id" json:"class_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Search    string
	TeacherID string
	Page      int
	PageSize  int
}

// ClassOverview is a class with its assigned teachers and subjects resolved,
// as returned by the admin and teacher listing endpoints.
type ClassOverview struct {
	Class
	Teachers []TeacherRef    `json:"teachers"`
	Subjects []SubjectDetail `json:"subjects"`
}

// TeacherRef is the minimal teacher projection embedded in listings.
type TeacherRef struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}
