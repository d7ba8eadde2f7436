// Package queue defines the hall-pass event payloads exchanged over the
// message broker and the consumer that logs them.
package queue

import (
	"time"

	"github.com/premierpass/premier-pass/internal/model"
)

// Queue names.  Both are durable.
const (
	PassEventsQueue       = "hallpass.passes"
	AttendanceEventsQueue = "hallpass.attendance"
)

// PassEvent is published whenever a pass is created or changes status.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type PassEvent struct {
	PassID     uint64 `json:"pass_id"`
	StudentID  uint64 `json:"student_id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	StartTime  string `json:"start_time,omitempty"`
	EndedAt    string `json:"ended_at,omitempty"`
	CreatedAt  string `json:"created_at"`
	OccurredAt string `json:"occurred_at"`
}

// AttendanceEvent is published for every sign-in, sign-out and automatic
// sign-out.
type AttendanceEvent struct {
	EventID   uint64 `json:"event_id"`
	StudentID uint64 `json:"student_id"`
	Action    string `json:"action"`
	Code      string `json:"code,omitempty"`
	Timestamp string `json:"timestamp"`
}

func stamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// NewPassEvent converts p into its wire payload.
func NewPassEvent(p model.Pass, occurred time.Time) PassEvent {
	return PassEvent{
		PassID:     p.ID,
		StudentID:  p.StudentID,
		Type:       p.Type,
		Status:     string(p.Status),
		StartTime:  stamp(p.StartTime),
		EndedAt:    stamp(p.EndedAt),
		CreatedAt:  stamp(&p.CreatedAt),
		OccurredAt: stamp(&occurred),
	}
}

// NewAttendanceEvent converts ev into its wire payload.
func NewAttendanceEvent(ev model.AttendanceEvent) AttendanceEvent {
	return AttendanceEvent{
		EventID:   ev.ID,
		StudentID: ev.StudentID,
		Action:    string(ev.Action),
		Code:      ev.Code,
		Timestamp: stamp(&ev.Timestamp),
	}
}
