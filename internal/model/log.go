package model

import "time"

// LogEntry is a row in the append-only `logs` table: a free-form audit
// record of something a user did.
//
//	ID        – primary key, assigned by the store.
//	UserID    – who the entry is about.
//	Action    – short verb such as "pass_override" or "note".
//	Details   – free text; may be empty.
//	Timestamp – when the entry was written.
type LogEntry struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// LogFilter narrows a log listing.  Results are newest first.
type LogFilter struct {
	UserID uint64
	Action string
	Limit  int
}

// Matches reports whether e satisfies the filter.
func (f LogFilter) Matches(e LogEntry) bool {
	if f.UserID != 0 && e.UserID != f.UserID {
		return false
	}
	return f.Action == "" || e.Action == f.Action
}
