package collector

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/roster"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/interfaces"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

// ArrivalRequest is one student redeeming the broadcast token.
type ArrivalRequest struct {
	LectureID     string
	Token         string
	StudentNumber string
	ClaimedAt     time.Time
	Address       string
	UserAgent     string
}

// Arrive validates a redemption and, on success, persists the attendance
// record and moves the student into the present partition. Checks run in
// a fixed order and stop at the first failure; each failure has its own
// client-visible outcome. The persisted record is written before any
// roster mutation so a persistence failure leaves memory untouched and
// retry safe.
func (m *Manager) Arrive(ctx context.Context, req ArrivalRequest) *Outcome {
	if req.Token == "" || req.StudentNumber == "" || !types.IsValidLectureID(req.LectureID) {
		return errorOutcome(CodeInvalidInput, "missing or malformed arrival input")
	}

	m.mu.Lock()
	s, exists := m.sessions[req.LectureID]
	if !exists {
		m.mu.Unlock()
		return errorOutcome(CodeInvalidInput, "no attendance collection running for lecture")
	}
	if s.roster.IsPresent(req.StudentNumber) {
		m.mu.Unlock()
		return &Outcome{Event: types.EventSavedAlready, Payload: req.LectureID}
	}
	if !s.tokens.Redeemable(req.Token, req.ClaimedAt) {
		m.mu.Unlock()
		log.Printf("Token rejected: lecture=%s student=%s addr=%s", req.LectureID, req.StudentNumber, req.Address)
		return &Outcome{Event: types.EventTooSlow, Payload: req.LectureID}
	}
	student, found := s.roster.Lookup(req.StudentNumber)
	m.mu.Unlock()

	if !found {
		log.Printf("ERROR: student missing from roster: lecture=%s student=%s", req.LectureID, req.StudentNumber)
		return &Outcome{Event: types.EventStudentNotFound, Payload: req.LectureID}
	}

	record := &types.AttendanceRecord{
		ID:           uuid.New().String(),
		Status:       types.StatusPresent,
		Date:         m.now(),
		EnrollmentID: student.EnrollmentID,
		LectureID:    req.LectureID,
	}
	alreadyRecorded := false
	if err := m.store.SaveAttendance(ctx, record); err != nil {
		if !errors.Is(err, interfaces.ErrAlreadyRecorded) {
			log.Printf("Attendance persist failed: lecture=%s student=%s: %v", req.LectureID, req.StudentNumber, err)
			return errorOutcome(CodePersistenceFailure, "could not save attendance")
		}
		// The store's uniqueness constraint caught a concurrent duplicate;
		// reconcile the roster below and answer as already present.
		alreadyRecorded = true
	}

	m.mu.Lock()
	s, exists = m.sessions[req.LectureID]
	if !exists {
		// Session finalized while the persist was in flight. The record is
		// durable; there is no group left to notify.
		m.mu.Unlock()
		return &Outcome{Event: types.EventSaved, Payload: req.LectureID}
	}
	if _, err := s.roster.MarkPresent(req.StudentNumber); err != nil {
		m.mu.Unlock()
		if errors.Is(err, roster.ErrAlreadyPresent) {
			return &Outcome{Event: types.EventSavedAlready, Payload: req.LectureID}
		}
		log.Printf("ERROR: roster inconsistency on arrival: lecture=%s student=%s: %v", req.LectureID, req.StudentNumber, err)
		return &Outcome{Event: types.EventStudentNotFound, Payload: req.LectureID}
	}
	snapshot := s.roster.Snapshot(req.LectureID)
	m.mu.Unlock()

	usage := m.ips.RecordArrival(req.LectureID, req.Address, req.StudentNumber, req.UserAgent, m.now())
	if usage.DuplicateFound {
		log.Printf("WARNING: multiple students from one address: lecture=%s addr=%s students=%v",
			req.LectureID, req.Address, usage.StudentNumbers)
	}

	m.broadcaster.Broadcast(req.LectureID, types.EventUpdateCourseStudents, snapshot.NotYetPresent)
	m.broadcaster.Broadcast(req.LectureID, types.EventUpdateAttendees, snapshot.Present)
	m.broadcaster.Broadcast(req.LectureID, types.EventUsedIPChecking, m.ips.UsageSnapshot(req.LectureID))

	log.Printf("Student arrived: lecture=%s student=%s addr=%s", req.LectureID, req.StudentNumber, req.Address)
	if alreadyRecorded {
		return &Outcome{Event: types.EventSavedAlready, Payload: req.LectureID}
	}
	return &Outcome{Event: types.EventSaved, Payload: req.LectureID}
}
