package collector

import (
	"context"
	"testing"
	"time"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

func arrival(token, studentNumber, address string) ArrivalRequest {
	return ArrivalRequest{
		LectureID:     "42",
		Token:         token,
		StudentNumber: studentNumber,
		ClaimedAt:     time.Now(),
		Address:       address,
		UserAgent:     "test-agent",
	}
}

func TestArriveSavesAndMovesStudent(t *testing.T) {
	m, store, broadcaster := newTestManager(t, inertTimings)
	ctx := context.Background()
	if outcome := m.Create(ctx, "42", types.RoleTeacher, "conn1"); outcome != nil {
		t.Fatalf("create failed: %+v", outcome)
	}

	outcome := m.Arrive(ctx, arrival(currentToken(t, m, "42"), "123", "10.0.0.5"))
	if outcome.Event != types.EventSaved {
		t.Fatalf("event = %q, want saved", outcome.Event)
	}

	if store.savedCount() != 1 {
		t.Fatalf("saved records = %d, want 1", store.savedCount())
	}
	store.mu.Lock()
	record := store.saved[0]
	store.mu.Unlock()
	if record.Status != types.StatusPresent || record.EnrollmentID != "e1" || record.LectureID != "42" {
		t.Fatalf("persisted record = %+v", record)
	}

	attendees := broadcaster.eventsNamed(types.EventUpdateAttendees)
	if len(attendees) != 1 {
		t.Fatalf("updateAttendees broadcasts = %d, want 1", len(attendees))
	}
	present := attendees[0].payload.([]types.Student)
	if len(present) != 1 || present[0].StudentNumber != "123" {
		t.Fatalf("present partition = %v", present)
	}
	if len(broadcaster.eventsNamed(types.EventUsedIPChecking)) != 1 {
		t.Fatal("a successful arrival must broadcast address usage")
	}
}

func TestArriveTwiceAnswersAlreadySaved(t *testing.T) {
	m, store, _ := newTestManager(t, inertTimings)
	ctx := context.Background()
	if outcome := m.Create(ctx, "42", types.RoleTeacher, "conn1"); outcome != nil {
		t.Fatalf("create failed: %+v", outcome)
	}
	tok := currentToken(t, m, "42")

	if outcome := m.Arrive(ctx, arrival(tok, "123", "10.0.0.5")); outcome.Event != types.EventSaved {
		t.Fatalf("first arrival = %q, want saved", outcome.Event)
	}
	if outcome := m.Arrive(ctx, arrival(tok, "123", "10.0.0.5")); outcome.Event != types.EventSavedAlready {
		t.Fatalf("second arrival = %q, want savedAlready", outcome.Event)
	}
	if store.savedCount() != 1 {
		t.Fatalf("saved records = %d, want exactly 1", store.savedCount())
	}
}

func TestArriveExpiredClaimIsTooSlow(t *testing.T) {
	m, store, _ := newTestManager(t, inertTimings)
	ctx := context.Background()
	if outcome := m.Create(ctx, "42", types.RoleTeacher, "conn1"); outcome != nil {
		t.Fatalf("create failed: %+v", outcome)
	}

	req := arrival(currentToken(t, m, "42"), "123", "10.0.0.5")
	req.ClaimedAt = time.Now().Add(2 * time.Hour)

	outcome := m.Arrive(ctx, req)
	if outcome.Event != types.EventTooSlow {
		t.Fatalf("event = %q, want tooSlow", outcome.Event)
	}
	if store.savedCount() != 0 {
		t.Fatal("a rejected claim must not persist anything")
	}
}

func TestArriveUnknownTokenIsTooSlow(t *testing.T) {
	m, _, _ := newTestManager(t, inertTimings)
	ctx := context.Background()
	if outcome := m.Create(ctx, "42", types.RoleTeacher, "conn1"); outcome != nil {
		t.Fatalf("create failed: %+v", outcome)
	}

	outcome := m.Arrive(ctx, arrival("bogus-token", "123", "10.0.0.5"))
	if outcome.Event != types.EventTooSlow {
		t.Fatalf("event = %q, want tooSlow", outcome.Event)
	}
}

func TestArriveWithoutSession(t *testing.T) {
	m, _, _ := newTestManager(t, inertTimings)

	outcome := m.Arrive(context.Background(), arrival("any", "123", "10.0.0.5"))
	assertErrorCode(t, outcome, CodeInvalidInput)
}

func TestArriveMissingInput(t *testing.T) {
	m, _, _ := newTestManager(t, inertTimings)
	ctx := context.Background()
	if outcome := m.Create(ctx, "42", types.RoleTeacher, "conn1"); outcome != nil {
		t.Fatalf("create failed: %+v", outcome)
	}

	outcome := m.Arrive(ctx, arrival(currentToken(t, m, "42"), "", "10.0.0.5"))
	assertErrorCode(t, outcome, CodeInvalidInput)
}

func TestArriveUnenrolledStudent(t *testing.T) {
	m, _, _ := newTestManager(t, inertTimings)
	ctx := context.Background()
	if outcome := m.Create(ctx, "42", types.RoleTeacher, "conn1"); outcome != nil {
		t.Fatalf("create failed: %+v", outcome)
	}

	outcome := m.Arrive(ctx, arrival(currentToken(t, m, "42"), "999", "10.0.0.5"))
	if outcome.Event != types.EventStudentNotFound {
		t.Fatalf("event = %q, want studentNotFound", outcome.Event)
	}
}

func TestArrivePersistenceFailureLeavesRosterUntouched(t *testing.T) {
	m, store, _ := newTestManager(t, inertTimings)
	ctx := context.Background()
	if outcome := m.Create(ctx, "42", types.RoleTeacher, "conn1"); outcome != nil {
		t.Fatalf("create failed: %+v", outcome)
	}
	tok := currentToken(t, m, "42")

	store.failSave = true
	outcome := m.Arrive(ctx, arrival(tok, "123", "10.0.0.5"))
	assertErrorCode(t, outcome, CodePersistenceFailure)

	// The claim is retry safe once the store recovers.
	store.failSave = false
	if outcome := m.Arrive(ctx, arrival(tok, "123", "10.0.0.5")); outcome.Event != types.EventSaved {
		t.Fatalf("retry event = %q, want saved", outcome.Event)
	}
}

func TestArriveReconcilesStoreConflict(t *testing.T) {
	// A record persisted out of band surfaces as a uniqueness conflict; the
	// arrival reconciles the roster and answers already present.
	m, store, _ := newTestManager(t, inertTimings)
	ctx := context.Background()
	if outcome := m.Create(ctx, "42", types.RoleTeacher, "conn1"); outcome != nil {
		t.Fatalf("create failed: %+v", outcome)
	}
	store.mu.Lock()
	store.keys["e1|42"] = true
	store.mu.Unlock()

	outcome := m.Arrive(ctx, arrival(currentToken(t, m, "42"), "123", "10.0.0.5"))
	if outcome.Event != types.EventSavedAlready {
		t.Fatalf("event = %q, want savedAlready", outcome.Event)
	}

	m.mu.Lock()
	present := m.sessions["42"].roster.IsPresent("123")
	m.mu.Unlock()
	if !present {
		t.Fatal("conflicting arrival must still reconcile the roster")
	}
}

func TestArrivalsFromOneAddressFlagDuplicate(t *testing.T) {
	m, _, broadcaster := newTestManager(t, inertTimings)
	ctx := context.Background()
	if outcome := m.Create(ctx, "42", types.RoleTeacher, "conn1"); outcome != nil {
		t.Fatalf("create failed: %+v", outcome)
	}
	tok := currentToken(t, m, "42")

	if outcome := m.Arrive(ctx, arrival(tok, "123", "10.0.0.5")); outcome.Event != types.EventSaved {
		t.Fatalf("first arrival = %q", outcome.Event)
	}
	if outcome := m.Arrive(ctx, arrival(tok, "456", "10.0.0.5")); outcome.Event != types.EventSaved {
		t.Fatalf("flagged arrival = %q, want saved; the flag must never block the claim", outcome.Event)
	}
	if outcome := m.Arrive(ctx, arrival(tok, "789", "10.0.0.9")); outcome.Event != types.EventSaved {
		t.Fatalf("third arrival = %q", outcome.Event)
	}

	usageEvents := broadcaster.eventsNamed(types.EventUsedIPChecking)
	if len(usageEvents) != 3 {
		t.Fatalf("usage broadcasts = %d, want 3", len(usageEvents))
	}
	last := usageEvents[len(usageEvents)-1].payload.(map[string]types.AddressUsage)
	shared := last["10.0.0.5"]
	if !shared.DuplicateFound || len(shared.StudentNumbers) != 2 {
		t.Fatalf("shared address usage = %+v, want duplicate flag with two students", shared)
	}
	if last["10.0.0.9"].DuplicateFound {
		t.Fatal("a single-student address must not be flagged")
	}
}
