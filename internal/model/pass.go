package model

import "time"

// PassStatus is the lifecycle state of a Pass.  Exactly one status holds at
// any time.  Legal transitions are queued→active (promotion), active→expired
// (sweep) and active→completed (student returned).  Expired and completed are
// terminal.
type PassStatus string

const (
	PassQueued    PassStatus = "queued"
	PassActive    PassStatus = "active"
	PassExpired   PassStatus = "expired"
	PassCompleted PassStatus = "completed"
)

// Valid reports whether s is one of the four known statuses.
func (s PassStatus) Valid() bool {
	switch s {
	case PassQueued, PassActive, PassExpired, PassCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s PassStatus) Terminal() bool { return s == PassExpired || s == PassCompleted }

// InFlight reports whether a pass in status s counts against its type's
// capacity.
func (s PassStatus) InFlight() bool { return s == PassActive || s == PassQueued }

// CanTransition reports whether moving from s to next is allowed.
func (s PassStatus) CanTransition(next PassStatus) bool {
	switch s {
	case PassQueued:
		return next == PassActive
	case PassActive:
		return next == PassExpired || next == PassCompleted
	}
	return false
}

// InFlightStatuses lists the statuses counted by admission control.
var InFlightStatuses = []PassStatus{PassActive, PassQueued}

// Pass represents a row in the `passes` table: a student's request to
// leave the classroom for a resource category such as the bathroom or the
// testing center.
//
// Fields:
//  ID        – primary key, assigned by the store on insert.
//  StudentID – student who requested the pass (weak reference).
//  Type      – resource category; selects capacity and time budget.
//  Status    – queued, active, expired or completed.
//  StartTime – when the pass became active; nil while queued.
//  EndedAt   – when the pass reached a terminal status; nil otherwise.
//  CreatedAt – creation time; queue order is (CreatedAt, ID) ascending.
type Pass struct {
	ID        uint64     `json:"id"`         // passes.id
	StudentID uint64     `json:"student_id"` // passes.student_id
	Type      string     `json:"type"`       // passes.type
	Status    PassStatus `json:"status"`     // passes.status
	StartTime *time.Time `json:"start_time"` // passes.start_time (nullable)
	EndedAt   *time.Time `json:"ended_at"`   // passes.ended_at (nullable)
	CreatedAt time.Time  `json:"created_at"` // passes.created_at
}

// QueuedBefore reports whether p is ahead of o in its type's queue.
func (p Pass) QueuedBefore(o Pass) bool {
	if !p.CreatedAt.Equal(o.CreatedAt) {
		return p.CreatedAt.Before(o.CreatedAt)
	}
	return p.ID < o.ID
}

// PassUpdate is a compare-and-swap status change for one pass.  The store
// applies it only when the row is still in status From; otherwise it
// reports repository.ErrNotFound.  Nil time fields are left untouched.
type PassUpdate struct {
	From      PassStatus
	To        PassStatus
	StartTime *time.Time
	EndedAt   *time.Time
}
