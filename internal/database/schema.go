package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables the service needs.  Statements are
// idempotent so Migrate can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name          VARCHAR(255) NOT NULL,
		role          ENUM('student','teacher','admin') NOT NULL,
		class_name    VARCHAR(64) NOT NULL DEFAULT '',
		code          VARCHAR(16) NOT NULL DEFAULT '',
		dash_pass     CHAR(5) NULL,
		email         VARCHAR(255) NULL,
		password_hash VARCHAR(255) NULL,
		created_at    DATETIME(3) NOT NULL,
		UNIQUE KEY uq_users_email (email),
		KEY idx_users_role_dash (role, dash_pass)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS passes (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		student_id BIGINT UNSIGNED NOT NULL,
		type       VARCHAR(64) NOT NULL,
		status     ENUM('queued','active','expired','completed') NOT NULL,
		start_time DATETIME(3) NULL,
		ended_at   DATETIME(3) NULL,
		created_at DATETIME(3) NOT NULL,
		KEY idx_passes_type_status (type, status, created_at, id),
		KEY idx_passes_student_status (student_id, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS attendance_events (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		student_id BIGINT UNSIGNED NOT NULL,
		action     ENUM('sign_in','sign_out','auto_sign_out') NOT NULL,
		code       VARCHAR(16) NULL,
		timestamp  DATETIME(3) NOT NULL,
		KEY idx_events_student_ts (student_id, timestamp, id),
		KEY idx_events_ts (timestamp)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS logs (
		id        BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id   BIGINT UNSIGNED NOT NULL,
		action    VARCHAR(64) NOT NULL,
		details   TEXT NOT NULL,
		timestamp DATETIME(3) NOT NULL,
		KEY idx_logs_ts (timestamp, id),
		KEY idx_logs_user_ts (user_id, timestamp)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
