package collector

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// FinishManual finalizes a session on teacher command. The same-day
// duplicate-action guard runs before any state is touched, and it still
// applies when the session is already gone, so an accidental double click
// from the same address answers duplicateAction rather than re-running
// the finalize.
func (m *Manager) FinishManual(ctx context.Context, lectureID, role, address string) *Outcome {
	if !types.IsPrivilegedRole(role) {
		return errorOutcome(CodeUnauthorizedRole, "role may not finalize attendance collection")
	}
	if m.ips.SameDayRepeat(lectureID, address, m.now()) {
		log.Printf("Duplicate finalize rejected: lecture=%s addr=%s", lectureID, address)
		return errorOutcome(CodeDuplicateAction, "lecture already closed from this address today")
	}

	outcome := m.finalize(ctx, lectureID)
	if outcome.Event == types.EventLectureFinished {
		m.ips.MarkPrivilegedAction(lectureID, address, m.now())
	}
	return outcome
}

// autoFinalize runs when the absolute session timeout fires; it skips the
// role and duplicate-action guards. Returns false when the finalize did
// not complete and the session was kept, so the caller re-arms the
// timeout for a retry.
func (m *Manager) autoFinalize(lectureID string) bool {
	outcome := m.finalize(context.Background(), lectureID)
	if outcome.Event == types.EventError {
		log.Printf("Auto-finalize failed, session kept for retry: lecture=%s", lectureID)
		return false
	}
	return true
}

// finalize persists every remaining not-yet-present student as absent in
// one batch, then tears the session down. A persistence failure aborts the
// whole finalize and the session stays active so it can be retried.
// Finalizing an already torn-down session is an idempotent no-op.
func (m *Manager) finalize(ctx context.Context, lectureID string) *Outcome {
	m.mu.Lock()
	s, exists := m.sessions[lectureID]
	if !exists {
		m.mu.Unlock()
		return &Outcome{Event: types.EventLectureFinished, Payload: lectureID}
	}
	remaining := s.roster.Remaining()
	m.mu.Unlock()

	absences := make([]*types.AttendanceRecord, 0, len(remaining))
	for _, student := range remaining {
		absences = append(absences, &types.AttendanceRecord{
			ID:           uuid.New().String(),
			Status:       types.StatusAbsent,
			Date:         m.now(),
			EnrollmentID: student.EnrollmentID,
			LectureID:    lectureID,
		})
	}
	if err := m.store.SaveAttendanceBatch(ctx, absences); err != nil {
		log.Printf("Absence batch persist failed: lecture=%s count=%d: %v", lectureID, len(absences), err)
		return errorOutcome(CodePersistenceFailure, "could not save absence records")
	}

	m.mu.Lock()
	if s, exists = m.sessions[lectureID]; exists {
		m.teardownLocked(s)
	}
	m.mu.Unlock()

	m.broadcaster.Broadcast(lectureID, types.EventLectureFinished, lectureID)
	log.Printf("Session finalized: lecture=%s absences=%d", lectureID, len(absences))
	return &Outcome{Event: types.EventLectureFinished, Payload: lectureID}
}

// Cancel discards the lecture entirely: the lecture row is deleted, no
// absence records are written, and the in-memory state is torn down. Same
// authorization and same-day guard as manual finalize.
func (m *Manager) Cancel(ctx context.Context, lectureID, role, address string) *Outcome {
	if !types.IsPrivilegedRole(role) {
		return errorOutcome(CodeUnauthorizedRole, "role may not cancel attendance collection")
	}
	if m.ips.SameDayRepeat(lectureID, address, m.now()) {
		log.Printf("Duplicate cancel rejected: lecture=%s addr=%s", lectureID, address)
		return errorOutcome(CodeDuplicateAction, "lecture already closed from this address today")
	}

	m.mu.Lock()
	_, exists := m.sessions[lectureID]
	m.mu.Unlock()
	if !exists {
		return errorOutcome(CodeInvalidInput, "no attendance collection running for lecture")
	}

	if err := m.store.DeleteLecture(ctx, lectureID); err != nil {
		log.Printf("Lecture delete failed: lecture=%s: %v", lectureID, err)
		return errorOutcome(CodePersistenceFailure, "could not delete lecture")
	}

	m.mu.Lock()
	if s, stillThere := m.sessions[lectureID]; stillThere {
		m.teardownLocked(s)
	}
	m.mu.Unlock()

	m.ips.MarkPrivilegedAction(lectureID, address, m.now())
	m.broadcaster.Broadcast(lectureID, types.EventLectureCanceled, lectureID)
	log.Printf("Session canceled: lecture=%s", lectureID)
	return &Outcome{Event: types.EventLectureCanceled, Payload: lectureID}
}
