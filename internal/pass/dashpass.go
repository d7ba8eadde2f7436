package pass

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/premierpass/premier-pass/internal/model"
)

// TimeOfDay is a wall-clock time without a date, as stored in a
// student's dash_pass column.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS".  Seconds are dropped.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q, want HH:MM", s)
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// On returns the instant t falls on for the calendar day of now in loc,
// at zero seconds.
func (t TimeOfDay) On(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, loc)
}

// DashPassResult summarises one dash-pass sweep.
type DashPassResult struct {
	Checked   int
	SignedOut int
	Errors    []error
}

func (r *DashPassResult) fail(err error) {
	log.Printf("dash-pass: %v", err)
	r.Errors = append(r.Errors, err)
}

// SweepDashPasses signs out every student whose dash-pass time today has
// arrived and whose most recent attendance event is not already a sign-out.
//
// Only the most recent event is consulted, so a student who signs back in
// after the deadline is signed out again on the next tick.  Failures are
// isolated per student.
func (e *Engine) SweepDashPasses(ctx context.Context, now time.Time) DashPassResult {
	var res DashPassResult
	students, err := e.findStudents(ctx, model.StudentFilter{Role: model.RoleStudent, HasDashPass: true})
	if err != nil {
		res.fail(err)
		return res
	}
	for _, st := range students {
		if ctx.Err() != nil {
			res.fail(ctx.Err())
			return res
		}
		if st.DashPass == nil {
			continue
		}
		res.Checked++
		tod, err := ParseTimeOfDay(*st.DashPass)
		if err != nil {
			res.fail(fmt.Errorf("student %d: %w", st.ID, err))
			continue
		}
		if now.Before(tod.On(now, e.loc)) {
			continue
		}
		signed, err := e.autoSignOut(ctx, st.ID, now)
		if err != nil {
			res.fail(fmt.Errorf("student %d: %w", st.ID, err))
			continue
		}
		if signed {
			res.SignedOut++
		}
	}
	return res
}

func (e *Engine) autoSignOut(ctx context.Context, studentID uint64, now time.Time) (bool, error) {
	unlock := e.locks.Lock(studentKey(studentID))
	defer unlock()

	latest, err := e.latestEvent(ctx, studentID)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.Action.SignsOut() {
		return false, nil
	}
	ev, err := e.insertEvent(ctx, model.AttendanceEvent{
		StudentID: studentID,
		Action:    model.ActionAutoSignOut,
		Timestamp: now,
	})
	if err != nil {
		return false, err
	}
	e.notifier.AttendanceRecorded(ctx, ev)
	return true, nil
}
