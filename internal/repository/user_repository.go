package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/premierpass/premier-pass/internal/model"
	"github.com/premierpass/premier-pass/internal/utils"
)

// UserRepo provides data access to the users table, which holds students,
// teachers and admins.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, name, role, class_name, code, dash_pass, email, password_hash, created_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	var role string
	var dash, email, hash sql.NullString
	if err := row.Scan(&u.ID, &u.Name, &role, &u.ClassName, &u.Code, &dash, &email, &hash, &u.CreatedAt); err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	if dash.Valid {
		d := dash.String
		u.DashPass = &d
	}
	u.Email = email.String
	u.PasswordHash = hash.String
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// CreateUser inserts u.  When password is non-empty it is hashed with
// bcrypt at the given cost.  It returns the stored user with its id.
func (r *UserRepo) CreateUser(ctx context.Context, u model.User, password string, cost int) (model.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if password != "" {
		hash, err := utils.HashPassword(password, cost)
		if err != nil {
			return model.User{}, err
		}
		u.PasswordHash = hash
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (name, role, class_name, code, dash_pass, email, password_hash, created_at) VALUES (?,?,?,?,?,?,?,?)",
		u.Name, string(u.Role), u.ClassName, u.Code, nullString(u.DashPass), nullIfEmpty(u.Email), nullIfEmpty(u.PasswordHash), u.CreatedAt.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, ErrEmailExists
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	u.ID = uint64(id)
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetStudent fetches a user by id regardless of role; callers check Role.
func (r *UserRepo) GetStudent(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// FindStudents returns users matching f ordered by id.
func (r *UserRepo) FindStudents(ctx context.Context, f model.StudentFilter) ([]model.User, error) {
	q := "SELECT " + userColumns + " FROM users WHERE 1=1"
	var args []interface{}
	if f.Role != "" {
		q += " AND role = ?"
		args = append(args, string(f.Role))
	}
	if f.HasDashPass {
		q += " AND dash_pass IS NOT NULL"
	}
	q += " ORDER BY id"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetDashPass sets or clears (nil) a student's dash-pass time.  It returns
// ErrNotFound when id is not a student.
func (r *UserRepo) SetDashPass(ctx context.Context, id uint64, dashPass *string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET dash_pass = ? WHERE id = ? AND role = ?",
		nullString(dashPass), id, string(model.RoleStudent))
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

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
