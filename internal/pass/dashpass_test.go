package pass

import (
	"context"
	"testing"
	"time"

	"github.com/premierpass/premier-pass/internal/model"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC)
}

func (env *testEnv) addEvent(t *testing.T, studentID uint64, action model.AttendanceAction, ts time.Time) {
	t.Helper()
	if _, err := env.store.InsertAttendanceEvent(context.Background(), model.AttendanceEvent{StudentID: studentID, Action: action, Timestamp: ts}); err != nil {
		t.Fatalf("insert event: %v", err)
	}
}

func (env *testEnv) events(t *testing.T, studentID uint64) []model.AttendanceEvent {
	t.Helper()
	evs, err := env.store.ListAttendanceEvents(context.Background(), model.EventFilter{StudentID: studentID})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return evs
}

func TestDashPassSignsOutOnceWhenDue(t *testing.T) {
	env := newTestEnv(t)
	st := env.addUser(t, "s", model.RoleStudent, strPtr("12:00"))
	env.addEvent(t, st.ID, model.ActionSignIn, at(9, 0))
	ctx := context.Background()

	res := env.engine.SweepDashPasses(ctx, at(11, 59))
	if res.SignedOut != 0 || len(env.events(t, st.ID)) != 1 {
		t.Fatalf("expected no sign-out before the deadline, got %+v", res)
	}

	res = env.engine.SweepDashPasses(ctx, at(12, 1))
	if res.Checked != 1 || res.SignedOut != 1 {
		t.Fatalf("expected one auto sign-out, got %+v", res)
	}
	evs := env.events(t, st.ID)
	if len(evs) != 2 || evs[0].Action != model.ActionAutoSignOut || !evs[0].Timestamp.Equal(at(12, 1)) {
		t.Fatalf("expected auto_sign_out at 12:01 as latest event, got %+v", evs)
	}

	res = env.engine.SweepDashPasses(ctx, at(12, 5))
	if res.SignedOut != 0 || len(env.events(t, st.ID)) != 2 {
		t.Fatalf("expected no second auto sign-out, got %+v", res)
	}
}

func TestDashPassAtExactDeadline(t *testing.T) {
	env := newTestEnv(t)
	st := env.addUser(t, "s", model.RoleStudent, strPtr("12:00"))

	res := env.engine.SweepDashPasses(context.Background(), at(12, 0))
	if res.SignedOut != 1 {
		t.Fatalf("expected sign-out at the deadline itself with no prior events, got %+v", res)
	}
	if evs := env.events(t, st.ID); len(evs) != 1 {
		t.Fatalf("expected one event, got %d", len(evs))
	}
}

func TestDashPassRespectsManualSignOut(t *testing.T) {
	env := newTestEnv(t)
	st := env.addUser(t, "s", model.RoleStudent, strPtr("12:00"))
	env.addEvent(t, st.ID, model.ActionSignIn, at(9, 0))
	env.addEvent(t, st.ID, model.ActionSignOut, at(11, 30))

	res := env.engine.SweepDashPasses(context.Background(), at(12, 30))
	if res.SignedOut != 0 {
		t.Fatalf("expected manual sign-out to suppress auto sign-out, got %+v", res)
	}
}

func TestDashPassSignInAfterDeadline(t *testing.T) {
	env := newTestEnv(t)
	st := env.addUser(t, "s", model.RoleStudent, strPtr("12:00"))
	ctx := context.Background()

	env.engine.SweepDashPasses(ctx, at(12, 1))
	env.addEvent(t, st.ID, model.ActionSignIn, at(12, 10))

	res := env.engine.SweepDashPasses(ctx, at(12, 11))
	if res.SignedOut != 1 {
		t.Fatalf("latest event is sign_in, expected another auto sign-out, got %+v", res)
	}
}

func TestDashPassSkipsStaffAndIsolatesBadTimes(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.addUser(t, "t", model.RoleTeacher, strPtr("08:00"))
	broken := env.addUser(t, "b", model.RoleStudent, strPtr("25:99"))
	ok := env.addUser(t, "o", model.RoleStudent, strPtr("10:15:00"))
	env.addUser(t, "none", model.RoleStudent, nil)

	res := env.engine.SweepDashPasses(context.Background(), at(10, 30))
	if res.Checked != 2 {
		t.Fatalf("expected 2 students checked, got %d", res.Checked)
	}
	if res.SignedOut != 1 || len(res.Errors) != 1 {
		t.Fatalf("expected one sign-out and one error, got %+v", res)
	}
	if len(env.events(t, teacher.ID)) != 0 || len(env.events(t, broken.ID)) != 0 {
		t.Fatalf("expected no events for teacher or broken dash pass")
	}
	if len(env.events(t, ok.ID)) != 1 {
		t.Fatalf("expected HH:MM:SS dash pass to be honoured")
	}
}

func TestDashPassUsesSchoolTimeZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	env := newTestEnv(t)
	env.engine.loc = ny
	env.addUser(t, "s", model.RoleStudent, strPtr("15:00"))

	// 15:00 UTC is 10:00 in New York on 2 March.
	if res := env.engine.SweepDashPasses(context.Background(), at(15, 0)); res.SignedOut != 0 {
		t.Fatalf("expected no sign-out at 10:00 local, got %+v", res)
	}
	if res := env.engine.SweepDashPasses(context.Background(), at(20, 0)); res.SignedOut != 1 {
		t.Fatalf("expected sign-out at 15:00 local, got %+v", res)
	}
}

func TestParseTimeOfDay(t *testing.T) {
	cases := map[string]string{
		"12:00":    "12:00",
		"7:05":     "07:05",
		"07:05":    "07:05",
		"23:59:59": "23:59",
		" 08:30 ":  "08:30",
		"24:00":    "",
		"noon":     "",
	}
	for in, want := range cases {
		tod, err := ParseTimeOfDay(in)
		if want == "" {
			if err == nil {
				t.Fatalf("expected %q to be rejected, got %s", in, tod)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if tod.String() != want {
			t.Fatalf("parse %q: expected %s, got %s", in, want, tod)
		}
	}
}

func TestRecordAttendance(t *testing.T) {
	env := newTestEnv(t)
	st := env.addUser(t, "s", model.RoleStudent, nil)
	ctx := context.Background()

	in, err := env.engine.RecordAttendance(ctx, st.ID, model.ActionSignIn)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if len(in.Code) != 3 || !in.Timestamp.Equal(schoolMorning) {
		t.Fatalf("expected 3-char code at %s, got %q %s", schoolMorning, in.Code, in.Timestamp)
	}
	out, err := env.engine.RecordAttendance(ctx, st.ID, model.ActionSignOut)
	if err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if out.Code != "" {
		t.Fatalf("expected no code on sign out, got %q", out.Code)
	}
	if _, err := env.engine.RecordAttendance(ctx, st.ID, model.ActionAutoSignOut); !IsValidation(err) {
		t.Fatalf("expected auto_sign_out to be rejected, got %v", err)
	}
	if _, err := env.engine.RecordAttendance(ctx, 404, model.ActionSignIn); !IsValidation(err) {
		t.Fatalf("expected unknown student to be rejected, got %v", err)
	}
}
