package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"

	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/auth"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/collector"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/internal/iptrack"
	"github.com/Krugou/Attenddotmetropoliadotfi-sub002/pkg/types"
)

const gatewaySecret = "gateway-test-secret"

// stubStore backs the gateway tests with a fixed roster and no failures.
type stubStore struct {
	students []types.Student
}

func (s *stubStore) EnrolledStudents(ctx context.Context, lectureID string) ([]types.Student, error) {
	return s.students, nil
}
func (s *stubStore) SaveAttendance(ctx context.Context, record *types.AttendanceRecord) error {
	return nil
}
func (s *stubStore) SaveAttendanceBatch(ctx context.Context, records []*types.AttendanceRecord) error {
	return nil
}
func (s *stubStore) DeleteAttendance(ctx context.Context, enrollmentID, lectureID string) error {
	return nil
}
func (s *stubStore) DeleteLecture(ctx context.Context, lectureID string) error { return nil }
func (s *stubStore) HealthCheck(ctx context.Context) error                     { return nil }
func (s *stubStore) Close() error                                              { return nil }

type stubSettings struct{}

func (stubSettings) SessionTimings(ctx context.Context) (types.SessionTimings, error) {
	// Long cadence keeps background timers quiet during a test.
	return types.SessionTimings{Cadence: time.Hour, LeewayMultiplier: 5, Timeout: time.Hour}, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := &stubStore{students: []types.Student{
		{StudentNumber: "123", FirstName: "Aino", LastName: "Virtanen", EnrollmentID: "e1"},
		{StudentNumber: "456", FirstName: "Mikko", LastName: "Korhonen", EnrollmentID: "e2"},
	}}
	registry := NewRegistry()
	manager := collector.NewManager(store, stubSettings{}, registry, iptrack.NewTracker())
	gateway := NewGateway(registry, auth.NewVerifier(gatewaySecret), manager)

	server := httptest.NewServer(http.HandlerFunc(gateway.HandleWebSocket))
	t.Cleanup(server.Close)
	return server
}

func signGatewayToken(t *testing.T, role, studentNumber string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userid":        "u-" + role,
		"role":          role,
		"studentnumber": studentNumber,
		"exp":           time.Now().Add(time.Hour).Unix(),
	})
	raw, err := tok.SignedString([]byte(gatewaySecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return raw
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	frame, err := json.Marshal(types.Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// readUntil reads frames until the named event arrives, failing the test if
// it does not show up within the deadline.
func readUntil(t *testing.T, conn *websocket.Conn, event string) types.Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		var envelope types.Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			t.Fatalf("did not receive %q: %v", event, err)
		}
		if envelope.Event == event {
			return envelope
		}
	}
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	server := newTestServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("handshake without a token must fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %v, want 401", resp)
	}
}

func TestHandshakeRejectsForgedToken(t *testing.T) {
	server := newTestServer(t)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"userid": "u", "role": "teacher"})
	raw, err := forged.SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + raw
	_, resp, dialErr := websocket.DefaultDialer.Dial(url, nil)
	if dialErr == nil {
		t.Fatal("forged token must be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %v, want 401", resp)
	}
}

func TestCreateCollectionOverSocket(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, signGatewayToken(t, types.RoleTeacher, ""))

	send(t, conn, types.EventCreateCollection, types.CreateCollectionPayload{LectureID: "42"})

	started := readUntil(t, conn, types.EventLectureStarted)
	var startPayload types.LectureStarted
	if err := json.Unmarshal(started.Data, &startPayload); err != nil {
		t.Fatalf("failed to decode lectureStarted: %v", err)
	}
	if startPayload.LectureID != "42" || startPayload.TimeoutMS <= 0 {
		t.Fatalf("lectureStarted payload = %+v", startPayload)
	}

	rosterFrame := readUntil(t, conn, types.EventAllStudents)
	var snapshot types.RosterSnapshot
	if err := json.Unmarshal(rosterFrame.Data, &snapshot); err != nil {
		t.Fatalf("failed to decode roster: %v", err)
	}
	if len(snapshot.NotYetPresent) != 2 || len(snapshot.Present) != 0 {
		t.Fatalf("roster split = %d/%d, want 0/2", len(snapshot.Present), len(snapshot.NotYetPresent))
	}
}

func TestCreateRejectedForStudentRole(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, signGatewayToken(t, types.RoleStudent, "123"))

	send(t, conn, types.EventCreateCollection, types.CreateCollectionPayload{LectureID: "42"})

	errFrame := readUntil(t, conn, types.EventError)
	var payload types.ErrorPayload
	if err := json.Unmarshal(errFrame.Data, &payload); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if payload.Code != collector.CodeUnauthorizedRole {
		t.Fatalf("code = %q, want unauthorizedRole", payload.Code)
	}
}

func TestArrivalWithBadTokenOverSocket(t *testing.T) {
	server := newTestServer(t)
	teacher := dial(t, server, signGatewayToken(t, types.RoleTeacher, ""))
	send(t, teacher, types.EventCreateCollection, types.CreateCollectionPayload{LectureID: "42"})
	readUntil(t, teacher, types.EventAllStudents)

	student := dial(t, server, signGatewayToken(t, types.RoleStudent, "123"))
	send(t, student, types.EventStudentArrived, types.ArrivalPayload{
		Token:         "not-the-broadcast-token",
		StudentNumber: "123",
		LectureID:     "42",
		UnixTimeMS:    time.Now().UnixMilli(),
	})

	readUntil(t, student, types.EventTooSlow)
}

func TestManualInsertOverSocket(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, signGatewayToken(t, types.RoleTeacher, ""))
	send(t, conn, types.EventCreateCollection, types.CreateCollectionPayload{LectureID: "42"})
	readUntil(t, conn, types.EventAllStudents)

	send(t, conn, types.EventManualInsert, types.ManualEditPayload{LectureID: "42", StudentNumber: "123"})

	attendees := readUntil(t, conn, types.EventUpdateAttendees)
	var present []types.Student
	if err := json.Unmarshal(attendees.Data, &present); err != nil {
		t.Fatalf("failed to decode attendees: %v", err)
	}
	if len(present) != 1 || present[0].StudentNumber != "123" {
		t.Fatalf("present = %v, want [123]", present)
	}
	readUntil(t, conn, types.EventInsertSuccess)
}

func TestFinishOverSocket(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, signGatewayToken(t, types.RoleTeacher, ""))
	send(t, conn, types.EventCreateCollection, types.CreateCollectionPayload{LectureID: "42"})
	readUntil(t, conn, types.EventAllStudents)

	send(t, conn, types.EventFinishWithButton, types.LectureActionPayload{LectureID: "42"})

	readUntil(t, conn, types.EventLectureFinished)
}

func TestUnknownEventAnswersError(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, signGatewayToken(t, types.RoleTeacher, ""))

	send(t, conn, "definitelyNotAnEvent", map[string]string{})

	errFrame := readUntil(t, conn, types.EventError)
	var payload types.ErrorPayload
	if err := json.Unmarshal(errFrame.Data, &payload); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if payload.Code != collector.CodeInvalidInput {
		t.Fatalf("code = %q, want invalidInput", payload.Code)
	}
}

func TestMissingPayloadAnswersError(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, signGatewayToken(t, types.RoleTeacher, ""))

	frame, err := json.Marshal(types.Envelope{Event: types.EventCreateCollection})
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	readUntil(t, conn, types.EventError)
}
