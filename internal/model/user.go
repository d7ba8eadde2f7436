package model

import "time"

// Role is a user's role.  Only students hold passes; teachers and admins
// review logs and manage students.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleAdmin
}

// User represents a row in the `users` table.  Students, teachers and
// admins share the table; Role tells them apart.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name.
//  Role         – student, teacher or admin.
//  ClassName    – homeroom for students, empty for staff.
//  Code         – short code a student types at the kiosk.
//  DashPass     – daily auto sign-out time as "HH:MM"; nil when unset.
//  Email        – login email; required for staff, optional for students.
//  PasswordHash – bcrypt hash; empty when the user has no login.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	ClassName    string    `json:"class_name,omitempty"`
	Code         string    `json:"code,omitempty"`
	DashPass     *string   `json:"dash_pass"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
