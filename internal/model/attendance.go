package model

import "time"

// AttendanceAction tags an AttendanceEvent.
type AttendanceAction string

const (
	ActionSignIn      AttendanceAction = "sign_in"
	ActionSignOut     AttendanceAction = "sign_out"
	ActionAutoSignOut AttendanceAction = "auto_sign_out"
)

// Valid reports whether a is a known action.
func (a AttendanceAction) Valid() bool {
	switch a {
	case ActionSignIn, ActionSignOut, ActionAutoSignOut:
		return true
	}
	return false
}

// SignsOut reports whether the action leaves the student signed out.
func (a AttendanceAction) SignsOut() bool {
	return a == ActionSignOut || a == ActionAutoSignOut
}

// AttendanceEvent is a row in the append-only `attendance_events` table.
// Rows are never updated or deleted.  Code is the short sign-in code shown
// to the student; it is empty for sign-outs.
type AttendanceEvent struct {
	ID        uint64           `json:"id"`
	StudentID uint64           `json:"student_id"`
	Action    AttendanceAction `json:"action"`
	Code      string           `json:"code,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}
