package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/premierpass/premier-pass/internal/model"
)

// PassRepo provides data access to the passes table.  All timestamps are
// written and read in UTC.  Status changes go through UpdatePass, which is
// a compare-and-swap on the current status.
type PassRepo struct {
	db *sql.DB
}

// NewPassRepo returns a new PassRepo bound to the provided database.
func NewPassRepo(db *sql.DB) *PassRepo { return &PassRepo{db: db} }

const passColumns = `id, student_id, type, status, start_time, ended_at, created_at`

func scanPass(row interface{ Scan(...any) error }) (model.Pass, error) {
	var p model.Pass
	var status string
	var start, ended sql.NullTime
	if err := row.Scan(&p.ID, &p.StudentID, &p.Type, &status, &start, &ended, &p.CreatedAt); err != nil {
		return model.Pass{}, err
	}
	p.Status = model.PassStatus(status)
	if start.Valid {
		t := start.Time.UTC()
		p.StartTime = &t
	}
	if ended.Valid {
		t := ended.Time.UTC()
		p.EndedAt = &t
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// passWhere renders the WHERE clause for f and its arguments.
func passWhere(f model.PassFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, f.Type)
	}
	if f.StudentID != 0 {
		conds = append(conds, "student_id = ?")
		args = append(args, f.StudentID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ",")+")")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// GetPass returns the pass with the given id or ErrNotFound.
func (r *PassRepo) GetPass(ctx context.Context, id uint64) (model.Pass, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+passColumns+` FROM passes WHERE id = ?`, id)
	p, err := scanPass(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Pass{}, ErrNotFound
	}
	return p, err
}

// FindPasses returns passes matching f ordered by created_at, then id.
// A positive f.Limit caps the number of rows.
func (r *PassRepo) FindPasses(ctx context.Context, f model.PassFilter) ([]model.Pass, error) {
	where, args := passWhere(f)
	q := `SELECT ` + passColumns + ` FROM passes` + where + ` ORDER BY created_at ASC, id ASC`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Pass
	for rows.Next() {
		p, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountPasses returns the number of passes matching f.  f.Limit is ignored.
func (r *PassRepo) CountPasses(ctx context.Context, f model.PassFilter) (int, error) {
	where, args := passWhere(f)
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passes`+where, args...).Scan(&n)
	return n, err
}

// InsertPass writes p and returns it with the generated id.
func (r *PassRepo) InsertPass(ctx context.Context, p model.Pass) (model.Pass, error) {
	var start sql.NullTime
	if p.StartTime != nil {
		start = sql.NullTime{Time: p.StartTime.UTC(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO passes (student_id, type, status, start_time, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.StudentID, p.Type, string(p.Status), start, p.CreatedAt.UTC(),
	)
	if err != nil {
		return model.Pass{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Pass{}, err
	}
	p.ID = uint64(id)
	return p, nil
}

// UpdatePass applies u to the pass with the given id only while the row is
// still in status u.From.  It returns ErrNotFound when no row matched.
func (r *PassRepo) UpdatePass(ctx context.Context, id uint64, u model.PassUpdate) error {
	var start, ended sql.NullTime
	if u.StartTime != nil {
		start = sql.NullTime{Time: u.StartTime.UTC(), Valid: true}
	}
	if u.EndedAt != nil {
		ended = sql.NullTime{Time: u.EndedAt.UTC(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE passes
		    SET status = ?, start_time = COALESCE(?, start_time), ended_at = COALESCE(?, ended_at)
		  WHERE id = ? AND status = ?`,
		string(u.To), start, ended, id, string(u.From),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
