package pass

import (
	"context"

	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/utils"
)

const signInCodeLen = 3

// RecordAttendance appends a manual sign_in or sign_out for a student.
// Sign-ins get a short random code the student shows to staff.  The write
// holds the same per-student lock as the dash-pass sweep.
func (e *Engine) RecordAttendance(ctx context.Context, studentID uint64, action model.AttendanceAction) (model.AttendanceEvent, error) {
	if studentID == 0 {
		return model.AttendanceEvent{}, &ValidationError{Field: "student_id", Reason: "is required"}
	}
	if action != model.ActionSignIn && action != model.ActionSignOut {
		return model.AttendanceEvent{}, &ValidationError{Field: "action", Reason: "must be sign_in or sign_out"}
	}
	student, err := e.getStudent(ctx, studentID)
	if err != nil {
		if isNotFound(err) {
			return model.AttendanceEvent{}, &ValidationError{Field: "student_id", Reason: "unknown student"}
		}
		return model.AttendanceEvent{}, err
	}
	if student.Role != model.RoleStudent {
		return model.AttendanceEvent{}, &ValidationError{Field: "student_id", Reason: "is not a student"}
	}

	ev := model.AttendanceEvent{StudentID: studentID, Action: action}
	if action == model.ActionSignIn {
		code, err := utils.RandomCode(signInCodeLen)
		if err != nil {
			return model.AttendanceEvent{}, err
		}
		ev.Code = code
	}

	unlock := e.locks.Lock(studentKey(studentID))
	defer unlock()

	ev.Timestamp = e.clock.Now()
	created, err := e.insertEvent(ctx, ev)
	if err != nil {
		return model.AttendanceEvent{}, err
	}
	e.notifier.AttendanceRecorded(ctx, created)
	return created, nil
}
