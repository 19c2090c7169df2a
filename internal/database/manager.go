// Package database implements the persistence collaborator on SQLite:
// enrollment lookups for roster seeding, attendance records with the
// per-(enrollment, lecture) uniqueness constraint, lecture deletion for
// cancellation and the settings table backing session timings.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	dbconfig "github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/database"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/interfaces"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// Manager implements interfaces.AttendanceStore. Reads go straight to the
// pool; writes funnel through a single goroutine, which is what SQLite
// wants under concurrency.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies pragmas and ensures the schema.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}
	if err := dbconfig.EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			op.result <- op.operation(m.db)
		case <-m.shutdown:
			log.Println("Database write loop shutting down")
			return
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return interfaces.ErrStoreClosed
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return errors.New("write operation timeout")
	case <-m.shutdown:
		return interfaces.ErrStoreClosed
	}
}

// EnrolledStudents returns every student enrolled in the lecture's course,
// in enrollment order.
func (m *Manager) EnrolledStudents(ctx context.Context, lectureID string) ([]types.Student, error) {
	var course string
	err := m.db.QueryRowContext(ctx, `SELECT course FROM lectures WHERE id = ?`, lectureID).Scan(&course)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, interfaces.ErrLectureNotFound
		}
		return nil, fmt.Errorf("failed to query lecture: %w", err)
	}

	query := `
		SELECT s.studentnumber, s.first_name, s.last_name, e.id
		FROM enrollments e
		JOIN students s ON s.studentnumber = e.studentnumber
		WHERE e.course = ?
		ORDER BY e.rowid
	`
	rows, err := m.db.QueryContext(ctx, query, course)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrollments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var students []types.Student
	for rows.Next() {
		var s types.Student
		if err := rows.Scan(&s.StudentNumber, &s.FirstName, &s.LastName, &s.EnrollmentID); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment row: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// SaveAttendance inserts one record. The (enrollmentid, lectureid)
// uniqueness constraint surfaces as ErrAlreadyRecorded.
func (m *Manager) SaveAttendance(ctx context.Context, record *types.AttendanceRecord) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO attendance (id, status, date, enrollmentid, lectureid)
			VALUES (?, ?, ?, ?, ?)
		`
		_, err := db.ExecContext(ctx, query,
			record.ID, record.Status, record.Date, record.EnrollmentID, record.LectureID)
		if err != nil {
			if isConstraintViolation(err) {
				return interfaces.ErrAlreadyRecorded
			}
			return fmt.Errorf("failed to insert attendance: %w", err)
		}
		return nil
	})
}

// SaveAttendanceBatch inserts all records in one transaction; the batch is
// atomic so a failed finalize leaves nothing half-written.
func (m *Manager) SaveAttendanceBatch(ctx context.Context, records []*types.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	return m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO attendance (id, status, date, enrollmentid, lectureid)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare batch insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, record := range records {
			if _, err := stmt.ExecContext(ctx,
				record.ID, record.Status, record.Date, record.EnrollmentID, record.LectureID); err != nil {
				return fmt.Errorf("failed to insert batch record: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit batch insert: %w", err)
		}
		return nil
	})
}

// DeleteAttendance removes the record for an enrollment in a lecture.
// Removing a record that never existed is not an error.
func (m *Manager) DeleteAttendance(ctx context.Context, enrollmentID, lectureID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`DELETE FROM attendance WHERE enrollmentid = ? AND lectureid = ?`, enrollmentID, lectureID)
		if err != nil {
			return fmt.Errorf("failed to delete attendance: %w", err)
		}
		return nil
	})
}

// DeleteLecture removes the lecture row and its attendance records; used
// by cancellation, which discards the lecture entirely.
func (m *Manager) DeleteLecture(ctx context.Context, lectureID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance WHERE lectureid = ?`, lectureID); err != nil {
			return fmt.Errorf("failed to delete lecture attendance: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM lectures WHERE id = ?`, lectureID); err != nil {
			return fmt.Errorf("failed to delete lecture: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit lecture delete: %w", err)
		}
		return nil
	})
}

// HealthCheck verifies the database responds.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

// Close stops the write loop and closes the pool.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()
	return m.db.Close()
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
