package interfaces

import (
	"context"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// AttendanceStore is the persistence collaborator consumed by the live
// collection core. The store must enforce at-most-one attendance row per
// (enrollment, lecture); that uniqueness constraint is the correctness
// backstop for concurrent duplicate arrivals, and violations surface as
// ErrAlreadyRecorded.
type AttendanceStore interface {
	// EnrolledStudents returns the enrolled population for a lecture,
	// in enrollment order.
	EnrolledStudents(ctx context.Context, lectureID string) ([]types.Student, error)

	// SaveAttendance persists a single record. Returns ErrAlreadyRecorded
	// when a record for the same (enrollment, lecture) already exists.
	SaveAttendance(ctx context.Context, record *types.AttendanceRecord) error

	// SaveAttendanceBatch persists all records in one transaction; either
	// every record lands or none do.
	SaveAttendanceBatch(ctx context.Context, records []*types.AttendanceRecord) error

	// DeleteAttendance removes the persisted record for an enrollment in a
	// lecture. Deleting a record that does not exist is not an error.
	DeleteAttendance(ctx context.Context, enrollmentID, lectureID string) error

	// DeleteLecture removes the lecture row itself; used by cancellation.
	DeleteLecture(ctx context.Context, lectureID string) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// SettingsProvider supplies session timing parameters at session start.
// A provider failure must not fail session creation; callers fall back to
// fixed defaults.
type SettingsProvider interface {
	SessionTimings(ctx context.Context) (types.SessionTimings, error)
}

// Broadcaster delivers a group-scoped event to every connection joined to
// a lecture's room. Delivery is best-effort; slow or dead receivers never
// block the caller.
type Broadcaster interface {
	Broadcast(lectureID, event string, payload interface{})
}
