package database

import (
	"database/sql"
	"fmt"
)

// The attendance row's (enrollmentid, lectureid) uniqueness constraint is
// the correctness backstop for concurrent duplicate arrivals: the roster
// in memory is a cache, this table is the source of truth.
const schema = `
CREATE TABLE IF NOT EXISTS students (
	studentnumber TEXT PRIMARY KEY,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lectures (
	id         TEXT PRIMARY KEY,
	course     TEXT NOT NULL,
	start_date DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
	id            TEXT PRIMARY KEY,
	studentnumber TEXT NOT NULL REFERENCES students(studentnumber),
	course        TEXT NOT NULL,
	UNIQUE (studentnumber, course)
);

CREATE TABLE IF NOT EXISTS attendance (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	date         DATETIME NOT NULL,
	enrollmentid TEXT NOT NULL REFERENCES enrollments(id),
	lectureid    TEXT NOT NULL,
	UNIQUE (enrollmentid, lectureid)
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_attendance_lecture ON attendance(lectureid);
CREATE INDEX IF NOT EXISTS idx_enrollments_course ON enrollments(course);
`

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
