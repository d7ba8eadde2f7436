package repository

import (
	"context"
	"database/sql"
)

// SQLStore bundles the MySQL repositories into the single record store the
// pass engine and the handlers run against.
type SQLStore struct {
	*PassRepo
	*UserRepo
	*AttendanceRepo
	*LogRepo
	db *sql.DB
}

// NewSQLStore returns a SQLStore over db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		PassRepo:       NewPassRepo(db),
		UserRepo:       NewUserRepo(db),
		AttendanceRepo: NewAttendanceRepo(db),
		LogRepo:        NewLogRepo(db),
		db:             db,
	}
}

// Ping verifies the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
