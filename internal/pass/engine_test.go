package pass

import (
	"context"
	"testing"
	"time"

	"github.com/premierpass/premier-pass/internal/clock"
	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/repository"
)

var schoolMorning = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	engine *Engine
	store  *repository.MemoryStore
	clock  *clock.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	clk := clock.Fake(schoolMorning)
	return &testEnv{
		engine: New(store, clk, Config{}, nil),
		store:  store,
		clock:  clk,
	}
}

func (env *testEnv) addUser(t *testing.T, name string, role model.Role, dashPass *string) model.User {
	t.Helper()
	u, err := env.store.CreateUser(context.Background(), model.User{
		Name:      name,
		Role:      role,
		DashPass:  dashPass,
		CreatedAt: env.clock.Now(),
	}, "", 0)
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (env *testEnv) addStudents(t *testing.T, n int) []model.User {
	t.Helper()
	out := make([]model.User, n)
	for i := range out {
		out[i] = env.addUser(t, "student", model.RoleStudent, nil)
	}
	return out
}

func (env *testEnv) pass(t *testing.T, id uint64) model.Pass {
	t.Helper()
	p, err := env.store.GetPass(context.Background(), id)
	if err != nil {
		t.Fatalf("get pass %d: %v", id, err)
	}
	return p
}

func (env *testEnv) countStatus(t *testing.T, passType string, status model.PassStatus) int {
	t.Helper()
	n, err := env.store.CountPasses(context.Background(), model.PassFilter{Type: passType, Statuses: []model.PassStatus{status}})
	if err != nil {
		t.Fatalf("count passes: %v", err)
	}
	return n
}

func strPtr(s string) *string { return &s }

// recordingNotifier keeps every notification in order.
type recordingNotifier struct {
	passes []model.Pass
	events []model.AttendanceEvent
}

func (r *recordingNotifier) PassChanged(_ context.Context, p model.Pass) {
	r.passes = append(r.passes, p)
}

func (r *recordingNotifier) AttendanceRecorded(_ context.Context, e model.AttendanceEvent) {
	r.events = append(r.events, e)
}

func TestNewDefaults(t *testing.T) {
	e := New(repository.NewMemoryStore(), nil, Config{}, nil)
	if e.timeout != DefaultStoreTimeout {
		t.Fatalf("expected default store timeout, got %s", e.timeout)
	}
	if e.loc != time.UTC {
		t.Fatalf("expected UTC location, got %s", e.loc)
	}
	if _, ok := e.Policies().Lookup("bathroom"); !ok {
		t.Fatalf("expected default policy table")
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	var k keyedMutex
	unlockA := k.Lock(typeKey("bathroom"))
	unlockB := k.Lock(studentKey(7))
	if len(k.locks) != 2 {
		t.Fatalf("expected 2 held keys, got %d", len(k.locks))
	}
	unlockA()
	unlockB()
	if len(k.locks) != 0 {
		t.Fatalf("expected entries dropped after unlock, got %d", len(k.locks))
	}
}
