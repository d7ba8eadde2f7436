// Package scheduler drives the periodic pass sweeps.
package scheduler

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/premierpass/premier-pass/internal/pass"
)

const (
	DefaultInterval = time.Minute
	DefaultTimeout  = 50 * time.Second
)

// Sweeper is the part of pass.Engine the loop drives.
type Sweeper interface {
	Now() time.Time
	SweepExpirations(ctx context.Context, now time.Time) pass.SweepResult
	SweepDashPasses(ctx context.Context, now time.Time) pass.DashPassResult
}

// TickResult is what one tick did.
type TickResult struct {
	Now         time.Time
	Expirations pass.SweepResult
	DashPasses  pass.DashPassResult
	Elapsed     time.Duration
}

// Loop runs the expiration sweep and then the dash-pass sweep on a fixed
// interval.  A tick that fires while the previous one is still running is
// skipped.
type Loop struct {
	sweeper  Sweeper
	interval time.Duration
	timeout  time.Duration
	metrics  *Metrics

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New returns a stopped Loop.  Non-positive interval and timeout fall back
// to DefaultInterval and DefaultTimeout; metrics may be nil.
func New(s Sweeper, interval, timeout time.Duration, metrics *Metrics) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Loop{sweeper: s, interval: interval, timeout: timeout, metrics: metrics}
}

// Start launches the ticker goroutine.  It returns immediately; the loop
// stops when ctx is cancelled or Stop is called.  Calling Start twice
// without Stop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	log.Printf("scheduler: started (interval=%s timeout=%s)", l.interval, l.timeout)
	ticker := time.NewTicker(l.interval)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.wg.Add(1)
				go func() {
					defer l.wg.Done()
					l.Tick(ctx)
				}()
			}
		}
	}()
}

// Stop cancels the loop and waits for the running tick, if any, to return.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
	log.Printf("scheduler: stopped")
}

// Tick runs one round of both sweeps under the per-tick timeout.  It
// reports false without doing anything when another tick is in progress.
func (l *Loop) Tick(ctx context.Context) (TickResult, bool) {
	if !l.running.CompareAndSwap(false, true) {
		log.Printf("scheduler: previous tick still running, skipping")
		l.metrics.observeSkip()
		return TickResult{}, false
	}
	defer l.running.Store(false)

	tickCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	started := time.Now()
	res := TickResult{Now: l.sweeper.Now()}
	res.Expirations = l.sweeper.SweepExpirations(tickCtx, res.Now)
	res.DashPasses = l.sweeper.SweepDashPasses(tickCtx, res.Now)
	res.Elapsed = time.Since(started)

	if res.Expirations.Expired > 0 || res.Expirations.Promoted > 0 || res.DashPasses.SignedOut > 0 {
		log.Printf("scheduler: expired=%d promoted=%d auto_sign_out=%d",
			res.Expirations.Expired, res.Expirations.Promoted, res.DashPasses.SignedOut)
	}
	if n := len(res.Expirations.Errors) + len(res.DashPasses.Errors); n > 0 {
		log.Printf("scheduler: tick finished with %d errors", n)
	}
	l.metrics.observe(res)
	return res, true
}
