package model

import "time"

// PassFilter narrows a pass lookup.  Zero values mean "no constraint".
// Results are always ordered by (created_at, id) ascending so that the
// first queued row is the next one to promote.
type PassFilter struct {
	Type      string
	Statuses  []PassStatus
	StudentID uint64
	Limit     int
}

// Matches reports whether p satisfies the filter.  Stores that cannot push
// the filter down use it directly.
func (f PassFilter) Matches(p Pass) bool {
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if f.StudentID != 0 && p.StudentID != f.StudentID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if p.Status == s {
			return true
		}
	}
	return false
}

// StudentFilter narrows a user lookup.
type StudentFilter struct {
	Role        Role
	HasDashPass bool
}

// Matches reports whether u satisfies the filter.
func (f StudentFilter) Matches(u User) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.HasDashPass && u.DashPass == nil {
		return false
	}
	return true
}

// EventFilter narrows an attendance event listing.  Results are newest
// first.
type EventFilter struct {
	StudentID uint64
	Since     *time.Time
	Until     *time.Time
	Limit     int
}

// Matches reports whether ev satisfies the filter.
func (f EventFilter) Matches(ev AttendanceEvent) bool {
	if f.StudentID != 0 && ev.StudentID != f.StudentID {
		return false
	}
	if f.Since != nil && ev.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !ev.Timestamp.Before(*f.Until) {
		return false
	}
	return true
}
