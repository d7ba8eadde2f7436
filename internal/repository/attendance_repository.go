package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/premierpass/premier-pass/internal/model"
)

// AttendanceRepo provides append-only access to the attendance_events
// table.  Rows are never updated or deleted.
type AttendanceRepo struct {
	db *sql.DB
}

// NewAttendanceRepo returns a new AttendanceRepo bound to the provided database.
func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

const eventColumns = `id, student_id, action, code, timestamp`

func scanEvent(row interface{ Scan(...any) error }) (model.AttendanceEvent, error) {
	var ev model.AttendanceEvent
	var action string
	var code sql.NullString
	if err := row.Scan(&ev.ID, &ev.StudentID, &action, &code, &ev.Timestamp); err != nil {
		return model.AttendanceEvent{}, err
	}
	ev.Action = model.AttendanceAction(action)
	ev.Code = code.String
	ev.Timestamp = ev.Timestamp.UTC()
	return ev, nil
}

// FindLatestAttendanceEvent returns the student's most recent event, or nil
// when the student has none.  Ties on timestamp go to the later insert.
func (r *AttendanceRepo) FindLatestAttendanceEvent(ctx context.Context, studentID uint64) (*model.AttendanceEvent, error) {
	ev, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM attendance_events
		  WHERE student_id = ?
		  ORDER BY timestamp DESC, id DESC
		  LIMIT 1`, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// InsertAttendanceEvent appends ev and returns it with the generated id.
func (r *AttendanceRepo) InsertAttendanceEvent(ctx context.Context, ev model.AttendanceEvent) (model.AttendanceEvent, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO attendance_events (student_id, action, code, timestamp) VALUES (?, ?, ?, ?)`,
		ev.StudentID, string(ev.Action), nullIfEmpty(ev.Code), ev.Timestamp.UTC())
	if err != nil {
		return model.AttendanceEvent{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.AttendanceEvent{}, err
	}
	ev.ID = uint64(id)
	return ev, nil
}

// ListAttendanceEvents returns events matching f, newest first.
func (r *AttendanceRepo) ListAttendanceEvents(ctx context.Context, f model.EventFilter) ([]model.AttendanceEvent, error) {
	q := `SELECT ` + eventColumns + ` FROM attendance_events WHERE 1=1`
	var args []interface{}
	if f.StudentID != 0 {
		q += ` AND student_id = ?`
		args = append(args, f.StudentID)
	}
	if f.Since != nil {
		q += ` AND timestamp >= ?`
		args = append(args, f.Since.UTC())
	}
	if f.Until != nil {
		q += ` AND timestamp < ?`
		args = append(args, f.Until.UTC())
	}
	q += ` ORDER BY timestamp DESC, id DESC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AttendanceEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
