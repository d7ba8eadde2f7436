package pass

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/premierpass/premier-pass/internal/model"
)

// SweepResult summarises one expiration sweep.  Errors holds one entry per
// pass or type that could not be processed; the rest of the sweep still ran.
type SweepResult struct {
	Expired  int
	Promoted int
	Errors   []error
}

func (r *SweepResult) fail(err error) {
	log.Printf("sweeper: %v", err)
	r.Errors = append(r.Errors, err)
}

// SweepExpirations expires every active pass that has been out longer than
// its type's budget and promotes the oldest queued pass of that type into
// the freed slot.  Afterwards it fills any remaining vacancies, such as
// slots freed by completed passes, oldest queued first.
//
// A store failure on one pass is recorded once and the sweep moves on; a
// type whose promotion failed is not filled again in the same sweep.
// Running the sweep again at the same instant changes nothing.
func (e *Engine) SweepExpirations(ctx context.Context, now time.Time) SweepResult {
	var res SweepResult
	stalled := make(map[string]bool)
	active, err := e.findPasses(ctx, model.PassFilter{Statuses: []model.PassStatus{model.PassActive}})
	if err != nil {
		res.fail(err)
		return res
	}
	for _, p := range active {
		if ctx.Err() != nil {
			res.fail(ctx.Err())
			return res
		}
		if p.StartTime == nil {
			res.fail(fmt.Errorf("pass %d: active without start_time", p.ID))
			continue
		}
		if now.Sub(*p.StartTime) <= e.policies.Budget(p.Type) {
			continue
		}
		if !e.expire(ctx, p, now, &res) {
			stalled[p.Type] = true
		}
	}
	for _, t := range e.policies.Types() {
		if ctx.Err() != nil {
			res.fail(ctx.Err())
			return res
		}
		if stalled[t] {
			continue
		}
		e.fillVacancies(ctx, t, now, &res)
	}
	return res
}

// expire moves p to expired and, if that succeeded, promotes at most one
// queued pass of the same type.  It returns false when the promotion hit a
// store error.
func (e *Engine) expire(ctx context.Context, p model.Pass, now time.Time, res *SweepResult) bool {
	unlock := e.locks.Lock(typeKey(p.Type))
	defer unlock()

	ended := now
	err := e.updatePass(ctx, p.ID, model.PassUpdate{From: model.PassActive, To: model.PassExpired, EndedAt: &ended})
	if err != nil {
		if isNotFound(err) {
			// completed or expired by someone else since the scan
			return true
		}
		res.fail(fmt.Errorf("expire pass %d: %w", p.ID, err))
		return true
	}
	res.Expired++
	p.Status = model.PassExpired
	p.EndedAt = &ended
	e.notifier.PassChanged(ctx, p)

	if _, err := e.promoteNext(ctx, p.Type, now, res); err != nil {
		res.fail(fmt.Errorf("promote after pass %d: %w", p.ID, err))
		return false
	}
	return true
}

// fillVacancies promotes queued passes of passType until the type is at
// capacity or its queue is empty.
func (e *Engine) fillVacancies(ctx context.Context, passType string, now time.Time, res *SweepResult) {
	unlock := e.locks.Lock(typeKey(passType))
	defer unlock()

	for {
		promoted, err := e.promoteNext(ctx, passType, now, res)
		if err != nil {
			res.fail(fmt.Errorf("fill %s: %w", passType, err))
			return
		}
		if !promoted {
			return
		}
	}
}

// promoteNext activates the oldest queued pass of passType if the type has
// a free active slot.  The caller holds the type lock.
func (e *Engine) promoteNext(ctx context.Context, passType string, now time.Time, res *SweepResult) (bool, error) {
	policy, ok := e.policies.Lookup(passType)
	if !ok {
		return false, nil
	}
	active, err := e.countPasses(ctx, model.PassFilter{Type: passType, Statuses: []model.PassStatus{model.PassActive}})
	if err != nil {
		return false, err
	}
	if active >= policy.Capacity {
		return false, nil
	}
	queued, err := e.findPasses(ctx, model.PassFilter{Type: passType, Statuses: []model.PassStatus{model.PassQueued}, Limit: 1})
	if err != nil {
		return false, err
	}
	if len(queued) == 0 {
		return false, nil
	}
	next := queued[0]
	start := now
	err = e.updatePass(ctx, next.ID, model.PassUpdate{From: model.PassQueued, To: model.PassActive, StartTime: &start})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("promote pass %d: %w", next.ID, err)
	}
	res.Promoted++
	next.Status = model.PassActive
	next.StartTime = &start
	e.notifier.PassChanged(ctx, next)
	return true, nil
}
