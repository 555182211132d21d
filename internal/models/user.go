package models

import "time"

// UserRole is the closed set of account roles.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// UserStatus tracks the approval lifecycle of an account. Admin and teacher
// accounts are approved at creation; students start pending and are approved
// or rejected by a teacher of their class.
type UserStatus string

const (
	StatusPending  UserStatus = "PENDING"
	StatusApproved UserStatus = "APPROVED"
	StatusRejected UserStatus = "REJECTED"
)

// User represents an account stored in the users table. RollNo and ClassID
// are set only for students.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	ContactNo    string     `db:"contact_no" json:"contact_no"`
	Role         UserRole   `db:"role" json:"role"`
	Status       UserStatus `db:"status" json:"status"`
	RollNo       *string    `db:"roll_no" json:"roll_no,omitempty"`
	ClassID      *string    `db:"class_id" json:"class_id,omitempty"`
	ProfilePic   string     `db:"profile_pic" json:"profile_pic"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// InClass reports whether the user belongs to the given class.
func (u *User) InClass(classID string) bool {
	return u.ClassID != nil && *u.ClassID == classID
}

// UserDetail joins the class name for listings.
type UserDetail struct {
	User
	ClassName *string `db:"class_name" json:"class_name,omitempty"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Status    *UserStatus
	ClassID   string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
