package types

import (
	"encoding/json"
	"time"
)

// Wire event names, inbound. These are the protocol names the frontend
// already speaks, so they are kept verbatim.
const (
	EventCreateCollection  = "createAttendanceCollection"
	EventStudentArrived    = "inputThatStudentHasArrivedToLecture"
	EventManualInsert      = "manualStudentInsert"
	EventManualRemove      = "manualStudentRemove"
	EventFinishWithButton  = "lectureFinishedWithButton"
	EventCancelLecture     = "lectureCanceled"
	EventPong              = "pongEvent"
)

// Wire event names, outbound.
const (
	EventLectureStarted       = "lectureStarted"
	EventPing                 = "pingEvent"
	EventAllStudents          = "getallstudentsinlecture"
	EventCollectionData       = "updateAttendanceCollectionData"
	EventUpdateCourseStudents = "updateCourseStudents"
	EventUpdateAttendees      = "updateAttendees"
	EventUsedIPChecking       = "usedIpChecking"
	EventLectureFinished      = "lectureFinished"
	EventLectureCanceled      = "lectureCanceledSuccess"
	EventTimerReset           = "timerResetSuccess"

	EventSaved            = "youHaveBeenSavedIntoLecture"
	EventSavedAlready     = "youHaveBeenSavedIntoLectureAlready"
	EventTooSlow          = "inputThatStudentHasArrivedToLectureTooSlow"
	EventStudentNotFound  = "studentNotFound"
	EventInsertSuccess    = "manualStudentInsertSuccess"
	EventInsertEmpty      = "manualStudentInsertFailedEmpty"
	EventInsertError      = "manualStudentInsertError"
	EventRemoveSuccess    = "manualStudentRemoveSuccess"
	EventRemoveEmpty      = "manualStudentRemoveFailedEmpty"
	EventRemoveError      = "manualStudentRemoveError"
	EventError            = "error"
)

// User roles recognized by the capability checks.
const (
	RoleAdmin     = "admin"
	RoleCounselor = "counselor"
	RoleTeacher   = "teacher"
	RoleStudent   = "student"
)

// Attendance record statuses.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// Envelope is the wire frame for every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Student is one enrolled student as carried in roster broadcasts.
// EnrollmentID ties the student to the persisted enrollment row so
// attendance records can reference it.
type Student struct {
	StudentNumber string `json:"studentnumber"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	EnrollmentID  string `json:"enrollmentid"`
}

// AttendanceRecord is the persisted-state boundary for a single claim:
// (status, date, enrollment, lecture).
type AttendanceRecord struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Date         time.Time `json:"date"`
	EnrollmentID string    `json:"enrollmentid"`
	LectureID    string    `json:"lectureid"`
}

// RosterSnapshot is the present / not-yet-present split broadcast to a
// lecture group.
type RosterSnapshot struct {
	LectureID     string    `json:"lectureid"`
	Present       []Student `json:"present"`
	NotYetPresent []Student `json:"notYetPresent"`
}

// AddressUsage records which students successfully claimed presence from
// one network address during a session. DuplicateFound is derived and true
// iff more than one distinct student used the address.
type AddressUsage struct {
	StudentNumbers []string  `json:"studentnumbers"`
	DuplicateFound bool      `json:"duplicateFound"`
	Timestamp      time.Time `json:"timestamp"`
	UserAgent      string    `json:"useragent"`
}

// CollectionData is the periodic republish payload carrying the current
// token alongside the roster split.
type CollectionData struct {
	LectureID     string    `json:"lectureid"`
	Hash          string    `json:"hash"`
	Present       []Student `json:"present"`
	NotYetPresent []Student `json:"notYetPresent"`
}

// LectureStarted announces a fresh or re-entered session together with the
// absolute timeout clients should count down from.
type LectureStarted struct {
	LectureID string `json:"lectureid"`
	TimeoutMS int64  `json:"timeout"`
}

// ErrorPayload is the caller-scoped terminal error event.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
