package repository

import (
	"context"
	"database/sql"

	"github.com/premierpass/premier-pass/internal/model"
)

// LogRepo provides append-only access to the logs table.
type LogRepo struct{ db *sql.DB }

func NewLogRepo(db *sql.DB) *LogRepo { return &LogRepo{db: db} }

// InsertLog appends e and returns it with the generated id.
func (r *LogRepo) InsertLog(ctx context.Context, e model.LogEntry) (model.LogEntry, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO logs (user_id, action, details, timestamp) VALUES (?, ?, ?, ?)`,
		e.UserID, e.Action, e.Details, e.Timestamp.UTC())
	if err != nil {
		return model.LogEntry{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.LogEntry{}, err
	}
	e.ID = uint64(id)
	return e, nil
}

// ListLogs returns entries matching f, newest first.
func (r *LogRepo) ListLogs(ctx context.Context, f model.LogFilter) ([]model.LogEntry, error) {
	q := `SELECT id, user_id, action, details, timestamp FROM logs WHERE 1=1`
	var args []interface{}
	if f.UserID != 0 {
		q += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.Action != "" {
		q += ` AND action = ?`
		args = append(args, f.Action)
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
	var out []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Details, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
