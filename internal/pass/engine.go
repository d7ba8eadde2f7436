// Package pass implements hall-pass admission control and the periodic
// sweeps that expire passes, promote queued requests and sign students
// out at their dash-pass time.
//
// All decisions that read several records and then write one run under a
// keyed lock: per pass type for admission and promotion, per student for
// attendance.  Status changes are compare-and-swap updates, so a row that
// moved underneath a sweep is skipped rather than overwritten.
package pass

import (
	"context"
	"time"

	"github.com/premierpass/premier-pass/internal/clock"
	"github.com/premierpass/premier-pass/internal/model"
)

// DefaultStoreTimeout bounds a single record store call.
const DefaultStoreTimeout = 5 * time.Second

// Config tunes an Engine.
type Config struct {
	Policies     Policies
	Location     *time.Location // school time zone for dash-pass deadlines
	StoreTimeout time.Duration
}

// Engine owns the pass admission controller, the expiration sweeper, the
// dash-pass scheduler and manual attendance recording.  It is safe for
// concurrent use by request handlers and the scheduling loop.
type Engine struct {
	store    Store
	clock    clock.Clock
	notifier Notifier
	policies Policies
	loc      *time.Location
	timeout  time.Duration
	locks    keyedMutex
}

// New builds an Engine.  A nil notifier disables notifications; a zero
// Config uses the default policy table, UTC and DefaultStoreTimeout.
func New(store Store, clk clock.Clock, cfg Config, notifier Notifier) *Engine {
	if store == nil {
		panic("pass: nil store")
	}
	if clk == nil {
		clk = clock.Real()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if cfg.Policies.byType == nil {
		cfg.Policies = DefaultPolicies()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	return &Engine{
		store:    store,
		clock:    clk,
		notifier: notifier,
		policies: cfg.Policies,
		loc:      cfg.Location,
		timeout:  cfg.StoreTimeout,
	}
}

// Policies returns the engine's policy table.
func (e *Engine) Policies() Policies { return e.policies }

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// Each store call gets its own deadline; a timeout fails that call only.

func (e *Engine) getPass(ctx context.Context, id uint64) (model.Pass, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	p, err := e.store.GetPass(ctx, id)
	return p, storeErr("get pass", err)
}

func (e *Engine) findPasses(ctx context.Context, f model.PassFilter) ([]model.Pass, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ps, err := e.store.FindPasses(ctx, f)
	return ps, storeErr("find passes", err)
}

func (e *Engine) countPasses(ctx context.Context, f model.PassFilter) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	n, err := e.store.CountPasses(ctx, f)
	return n, storeErr("count passes", err)
}

func (e *Engine) insertPass(ctx context.Context, p model.Pass) (model.Pass, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.store.InsertPass(ctx, p)
	return out, storeErr("insert pass", err)
}

func (e *Engine) updatePass(ctx context.Context, id uint64, u model.PassUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return storeErr("update pass", e.store.UpdatePass(ctx, id, u))
}

func (e *Engine) getStudent(ctx context.Context, id uint64) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	u, err := e.store.GetStudent(ctx, id)
	return u, storeErr("get student", err)
}

func (e *Engine) findStudents(ctx context.Context, f model.StudentFilter) ([]model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	us, err := e.store.FindStudents(ctx, f)
	return us, storeErr("find students", err)
}

func (e *Engine) latestEvent(ctx context.Context, studentID uint64) (*model.AttendanceEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	ev, err := e.store.FindLatestAttendanceEvent(ctx, studentID)
	return ev, storeErr("latest attendance event", err)
}

func (e *Engine) insertEvent(ctx context.Context, ev model.AttendanceEvent) (model.AttendanceEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	out, err := e.store.InsertAttendanceEvent(ctx, ev)
	return out, storeErr("insert attendance event", err)
}
