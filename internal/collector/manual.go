package collector

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/interfaces"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// ManualInsert marks a student present on teacher command: an explicit
// present-status record is persisted first, then the student moves from
// notYetPresent to present. A student missing from the source partition is
// a data inconsistency, logged and answered with an error ack rather than
// creating a duplicate entry.
func (m *Manager) ManualInsert(ctx context.Context, lectureID, studentNumber, role string) *Outcome {
	if !types.IsPrivilegedRole(role) {
		return errorOutcome(CodeUnauthorizedRole, "role may not edit the roster")
	}
	if studentNumber == "" {
		return &Outcome{Event: types.EventInsertEmpty, Payload: lectureID}
	}

	m.mu.Lock()
	s, exists := m.sessions[lectureID]
	if !exists {
		m.mu.Unlock()
		return errorOutcome(CodeInvalidInput, "no attendance collection running for lecture")
	}
	if s.roster.IsPresent(studentNumber) {
		m.mu.Unlock()
		log.Printf("ERROR: manual insert for student already present: lecture=%s student=%s", lectureID, studentNumber)
		return &Outcome{Event: types.EventInsertError, Payload: lectureID}
	}
	student, found := s.roster.Lookup(studentNumber)
	m.mu.Unlock()

	if !found {
		log.Printf("ERROR: manual insert for unknown student: lecture=%s student=%s", lectureID, studentNumber)
		return &Outcome{Event: types.EventInsertError, Payload: lectureID}
	}

	record := &types.AttendanceRecord{
		ID:           uuid.New().String(),
		Status:       types.StatusPresent,
		Date:         m.now(),
		EnrollmentID: student.EnrollmentID,
		LectureID:    lectureID,
	}
	if err := m.store.SaveAttendance(ctx, record); err != nil && !errors.Is(err, interfaces.ErrAlreadyRecorded) {
		log.Printf("Manual insert persist failed: lecture=%s student=%s: %v", lectureID, studentNumber, err)
		return &Outcome{Event: types.EventInsertError, Payload: lectureID}
	}

	m.mu.Lock()
	s, exists = m.sessions[lectureID]
	if !exists {
		m.mu.Unlock()
		return errorOutcome(CodeInvalidInput, "no attendance collection running for lecture")
	}
	if _, err := s.roster.MarkPresent(studentNumber); err != nil {
		m.mu.Unlock()
		log.Printf("ERROR: roster inconsistency on manual insert: lecture=%s student=%s: %v", lectureID, studentNumber, err)
		return &Outcome{Event: types.EventInsertError, Payload: lectureID}
	}
	snapshot := s.roster.Snapshot(lectureID)
	m.mu.Unlock()

	m.broadcastRoster(snapshot)
	log.Printf("Manual insert: lecture=%s student=%s", lectureID, studentNumber)
	return &Outcome{Event: types.EventInsertSuccess, Payload: lectureID}
}

// ManualRemove is the mirror edit: the persisted record is deleted, then
// the student moves from present back to notYetPresent.
func (m *Manager) ManualRemove(ctx context.Context, lectureID, studentNumber, role string) *Outcome {
	if !types.IsPrivilegedRole(role) {
		return errorOutcome(CodeUnauthorizedRole, "role may not edit the roster")
	}
	if studentNumber == "" {
		return &Outcome{Event: types.EventRemoveEmpty, Payload: lectureID}
	}

	m.mu.Lock()
	s, exists := m.sessions[lectureID]
	if !exists {
		m.mu.Unlock()
		return errorOutcome(CodeInvalidInput, "no attendance collection running for lecture")
	}
	student, found := s.roster.Lookup(studentNumber)
	isPresent := found && s.roster.IsPresent(studentNumber)
	m.mu.Unlock()

	if !isPresent {
		log.Printf("ERROR: manual remove for student not in present partition: lecture=%s student=%s", lectureID, studentNumber)
		return &Outcome{Event: types.EventRemoveError, Payload: lectureID}
	}

	if err := m.store.DeleteAttendance(ctx, student.EnrollmentID, lectureID); err != nil {
		log.Printf("Manual remove persist failed: lecture=%s student=%s: %v", lectureID, studentNumber, err)
		return &Outcome{Event: types.EventRemoveError, Payload: lectureID}
	}

	m.mu.Lock()
	s, exists = m.sessions[lectureID]
	if !exists {
		m.mu.Unlock()
		return errorOutcome(CodeInvalidInput, "no attendance collection running for lecture")
	}
	if _, err := s.roster.MarkAbsent(studentNumber); err != nil {
		m.mu.Unlock()
		log.Printf("ERROR: roster inconsistency on manual remove: lecture=%s student=%s: %v", lectureID, studentNumber, err)
		return &Outcome{Event: types.EventRemoveError, Payload: lectureID}
	}
	snapshot := s.roster.Snapshot(lectureID)
	m.mu.Unlock()

	m.broadcastRoster(snapshot)
	log.Printf("Manual remove: lecture=%s student=%s", lectureID, studentNumber)
	return &Outcome{Event: types.EventRemoveSuccess, Payload: lectureID}
}

func (m *Manager) broadcastRoster(snapshot types.RosterSnapshot) {
	m.broadcaster.Broadcast(snapshot.LectureID, types.EventUpdateCourseStudents, snapshot.NotYetPresent)
	m.broadcaster.Broadcast(snapshot.LectureID, types.EventUpdateAttendees, snapshot.Present)
}
