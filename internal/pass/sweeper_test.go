package pass

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/repository"
)

func TestSweepExpiresAndPromotes(t *testing.T) {
	env := newTestEnv(t)
	students := env.addStudents(t, 2)
	ctx := context.Background()

	p1, _ := env.engine.RequestPass(ctx, students[0].ID, "bathroom")
	p2, _ := env.engine.RequestPass(ctx, students[1].ID, "bathroom")

	// Five minutes is still within budget.
	res := env.engine.SweepExpirations(ctx, env.clock.Advance(5*time.Minute))
	if res.Expired != 0 || env.pass(t, p1.ID).Status != model.PassActive {
		t.Fatalf("expected p1 still active at exactly the budget, got expired=%d", res.Expired)
	}

	now := env.clock.Advance(time.Minute)
	res = env.engine.SweepExpirations(ctx, now)
	if res.Expired != 1 || res.Promoted != 1 || len(res.Errors) != 0 {
		t.Fatalf("expected 1 expired and 1 promoted, got %+v", res)
	}
	if got := env.pass(t, p1.ID); got.Status != model.PassExpired || got.EndedAt == nil || !got.EndedAt.Equal(now) {
		t.Fatalf("expected p1 expired at %s, got %s %v", now, got.Status, got.EndedAt)
	}
	got := env.pass(t, p2.ID)
	if got.Status != model.PassActive || got.StartTime == nil || !got.StartTime.Equal(now) {
		t.Fatalf("expected p2 active from %s, got %s %v", now, got.Status, got.StartTime)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	students := env.addStudents(t, 3)
	ctx := context.Background()
	for _, st := range students {
		if _, err := env.engine.RequestPass(ctx, st.ID, "bathroom"); err != nil {
			t.Fatalf("request: %v", err)
		}
	}

	now := env.clock.Advance(6 * time.Minute)
	first := env.engine.SweepExpirations(ctx, now)
	if first.Expired != 1 || first.Promoted != 1 {
		t.Fatalf("expected 1/1 on first sweep, got %+v", first)
	}
	before, _ := env.store.FindPasses(ctx, model.PassFilter{})

	second := env.engine.SweepExpirations(ctx, now)
	if second.Expired != 0 || second.Promoted != 0 || len(second.Errors) != 0 {
		t.Fatalf("expected no changes on second sweep, got %+v", second)
	}
	after, _ := env.store.FindPasses(ctx, model.PassFilter{})
	for i := range before {
		if before[i].Status != after[i].Status {
			t.Fatalf("pass %d changed from %s to %s on repeat sweep", before[i].ID, before[i].Status, after[i].Status)
		}
	}
}

func TestPromotionOrderOldestThenID(t *testing.T) {
	env := newTestEnv(t)
	students := env.addStudents(t, 4)
	ctx := context.Background()

	start := schoolMorning
	if _, err := env.store.InsertPass(ctx, model.Pass{StudentID: students[0].ID, Type: "bathroom", Status: model.PassActive, StartTime: &start, CreatedAt: start}); err != nil {
		t.Fatalf("insert active: %v", err)
	}
	later, _ := env.store.InsertPass(ctx, model.Pass{StudentID: students[1].ID, Type: "bathroom", Status: model.PassQueued, CreatedAt: start.Add(2 * time.Second)})
	tieLow, _ := env.store.InsertPass(ctx, model.Pass{StudentID: students[2].ID, Type: "bathroom", Status: model.PassQueued, CreatedAt: start.Add(time.Second)})
	tieHigh, _ := env.store.InsertPass(ctx, model.Pass{StudentID: students[3].ID, Type: "bathroom", Status: model.PassQueued, CreatedAt: start.Add(time.Second)})

	env.engine.SweepExpirations(ctx, env.clock.Advance(6*time.Minute))
	if got := env.pass(t, tieLow.ID).Status; got != model.PassActive {
		t.Fatalf("expected oldest, lowest-id pass promoted first, got %s", got)
	}
	if env.pass(t, tieHigh.ID).Status != model.PassQueued || env.pass(t, later.ID).Status != model.PassQueued {
		t.Fatalf("expected other queued passes untouched")
	}

	env.engine.SweepExpirations(ctx, env.clock.Advance(6*time.Minute))
	if got := env.pass(t, tieHigh.ID).Status; got != model.PassActive {
		t.Fatalf("expected id tie-break to promote %d next, got %s", tieHigh.ID, got)
	}
	if got := env.pass(t, later.ID).Status; got != model.PassQueued {
		t.Fatalf("expected newest pass still queued, got %s", got)
	}
}

func TestSweepUsesTypeBudget(t *testing.T) {
	env := newTestEnv(t)
	students := env.addStudents(t, 2)
	ctx := context.Background()

	bath, _ := env.engine.RequestPass(ctx, students[0].ID, "bathroom")
	nurse, _ := env.engine.RequestPass(ctx, students[1].ID, "nurse")

	env.engine.SweepExpirations(ctx, env.clock.Advance(30*time.Minute))
	if env.pass(t, bath.ID).Status != model.PassExpired {
		t.Fatalf("expected bathroom pass expired after 30m")
	}
	if env.pass(t, nurse.ID).Status != model.PassActive {
		t.Fatalf("expected nurse pass active within its 60m budget")
	}
	env.engine.SweepExpirations(ctx, env.clock.Advance(31*time.Minute))
	if env.pass(t, nurse.ID).Status != model.PassExpired {
		t.Fatalf("expected nurse pass expired after 61m")
	}
}

func TestSweepCapacityNeverExceeded(t *testing.T) {
	env := newTestEnv(t)
	students := env.addStudents(t, 20)
	ctx := context.Background()

	for i, st := range students {
		if _, err := env.engine.RequestPass(ctx, st.ID, "testing_center"); err != nil {
			t.Fatalf("request: %v", err)
		}
		if i%3 == 0 {
			env.engine.SweepExpirations(ctx, env.clock.Advance(25*time.Minute))
		}
		if n := env.countStatus(t, "testing_center", model.PassActive); n > 8 {
			t.Fatalf("capacity exceeded: %d active", n)
		}
	}
}

// flakyStore fails UpdatePass for selected pass ids.
type flakyStore struct {
	*repository.MemoryStore
	failIDs map[uint64]bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyStore) UpdatePass(ctx context.Context, id uint64, u model.PassUpdate) error {
	if f.failIDs[id] {
		return errDiskFull
	}
	return f.MemoryStore.UpdatePass(ctx, id, u)
}

func TestSweepIsolatesStoreErrors(t *testing.T) {
	env := newTestEnv(t)
	students := env.addStudents(t, 2)
	ctx := context.Background()

	bad, _ := env.engine.RequestPass(ctx, students[0].ID, "bathroom")
	good, _ := env.engine.RequestPass(ctx, students[1].ID, "library")

	flaky := &flakyStore{MemoryStore: env.store, failIDs: map[uint64]bool{bad.ID: true}}
	engine := New(flaky, env.clock, Config{}, nil)

	res := engine.SweepExpirations(ctx, env.clock.Advance(2*time.Hour))
	if res.Expired != 1 {
		t.Fatalf("expected the healthy pass to expire, got %+v", res)
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], errDiskFull) {
		t.Fatalf("expected one wrapped store error, got %v", res.Errors)
	}
	var serr *StoreError
	if !errors.As(res.Errors[0], &serr) {
		t.Fatalf("expected StoreError, got %T", res.Errors[0])
	}
	if env.pass(t, good.ID).Status != model.PassExpired {
		t.Fatalf("expected library pass expired despite bathroom failure")
	}
	if env.pass(t, bad.ID).Status != model.PassActive {
		t.Fatalf("expected failed pass untouched")
	}
}

func TestSweepSkipsConcurrentlyCompletedPass(t *testing.T) {
	env := newTestEnv(t)
	students := env.addStudents(t, 2)
	ctx := context.Background()
	p1, _ := env.engine.RequestPass(ctx, students[0].ID, "bathroom")
	p2, _ := env.engine.RequestPass(ctx, students[1].ID, "bathroom")

	// The student returns between the sweep's scan and its update.
	ended := schoolMorning.Add(4 * time.Minute)
	if err := env.store.UpdatePass(ctx, p1.ID, model.PassUpdate{From: model.PassActive, To: model.PassCompleted, EndedAt: &ended}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	res := SweepResult{}
	env.engine.expire(ctx, p1, env.clock.Advance(6*time.Minute), &res)
	if res.Expired != 0 || len(res.Errors) != 0 {
		t.Fatalf("expected benign no-op, got %+v", res)
	}
	if env.pass(t, p1.ID).Status != model.PassCompleted {
		t.Fatalf("completed pass must not be resurrected or expired")
	}
	if env.pass(t, p2.ID).Status != model.PassQueued {
		t.Fatalf("expire no-op must not promote")
	}
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	env := newTestEnv(t)
	students := env.addStudents(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	env.engine.RequestPass(ctx, students[0].ID, "bathroom")
	cancel()

	res := env.engine.SweepExpirations(ctx, env.clock.Advance(time.Hour))
	if len(res.Errors) == 0 || !errors.Is(res.Errors[0], context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", res.Errors)
	}
}

func TestSweepReportsPromotionFailureOnce(t *testing.T) {
	env := newTestEnv(t)
	students := env.addStudents(t, 3)
	ctx := context.Background()

	first, _ := env.engine.RequestPass(ctx, students[0].ID, "bathroom")
	stuck, _ := env.engine.RequestPass(ctx, students[1].ID, "bathroom")
	other, _ := env.engine.RequestPass(ctx, students[2].ID, "library")

	flaky := &flakyStore{MemoryStore: env.store, failIDs: map[uint64]bool{stuck.ID: true}}
	engine := New(flaky, env.clock, Config{}, nil)

	res := engine.SweepExpirations(ctx, env.clock.Advance(2*time.Hour))
	if res.Expired != 2 || res.Promoted != 0 {
		t.Fatalf("expected 2 expired and no promotion, got %+v", res)
	}
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], errDiskFull) {
		t.Fatalf("expected the promotion failure reported once, got %v", res.Errors)
	}
	if env.pass(t, first.ID).Status != model.PassExpired || env.pass(t, other.ID).Status != model.PassExpired {
		t.Fatalf("expected both active passes expired")
	}
	if env.pass(t, stuck.ID).Status != model.PassQueued {
		t.Fatalf("expected the failed promotion to leave the pass queued")
	}

	// Once the store recovers the next sweep fills the slot.
	res = env.engine.SweepExpirations(ctx, env.clock.Advance(time.Minute))
	if res.Promoted != 1 || len(res.Errors) != 0 || env.pass(t, stuck.ID).Status != model.PassActive {
		t.Fatalf("expected recovery sweep to promote, got %+v", res)
	}
}

func TestSweepConcurrentWithRequestsKeepsCapacity(t *testing.T) {
	env := newTestEnv(t)
	students := env.addStudents(t, 40)
	ctx := context.Background()
	types := []string{"bathroom", "testing_center"}
	capacity := map[string]int{"bathroom": 1, "testing_center": 8}

	checkCapacity := func() {
		for _, typ := range types {
			n, err := env.store.CountPasses(ctx, model.PassFilter{Type: typ, Statuses: []model.PassStatus{model.PassActive}})
			if err != nil {
				t.Errorf("count: %v", err)
				return
			}
			if n > capacity[typ] {
				t.Errorf("%s has %d active, capacity %d", typ, n, capacity[typ])
			}
		}
	}

	var wg sync.WaitGroup
	for i, st := range students {
		wg.Add(1)
		go func(id uint64, typ string) {
			defer wg.Done()
			for round := 0; round < 5; round++ {
				p, err := env.engine.RequestPass(ctx, id, typ)
				if errors.Is(err, ErrPassInFlight) {
					continue
				}
				if err != nil {
					t.Errorf("request: %v", err)
					return
				}
				if p.Status == model.PassActive {
					if _, err := env.engine.CompletePass(ctx, p.ID); err != nil && !errors.Is(err, ErrNotActive) {
						t.Errorf("complete: %v", err)
						return
					}
				}
			}
		}(st.ID, types[i%len(types)])
	}

	stop := make(chan struct{})
	swept := make(chan struct{})
	go func() {
		defer close(swept)
		for {
			select {
			case <-stop:
				return
			default:
			}
			res := env.engine.SweepExpirations(ctx, env.clock.Advance(time.Minute))
			for _, err := range res.Errors {
				t.Errorf("sweep: %v", err)
			}
			checkCapacity()
		}
	}()

	wg.Wait()
	close(stop)
	<-swept
	checkCapacity()

	inFlight, err := env.store.FindPasses(ctx, model.PassFilter{Statuses: model.InFlightStatuses})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	seen := make(map[uint64]bool)
	for _, p := range inFlight {
		if seen[p.StudentID] {
			t.Fatalf("student %d holds more than one pass in flight", p.StudentID)
		}
		seen[p.StudentID] = true
	}
}
