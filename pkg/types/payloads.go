package types

// Inbound event payloads. Validation tags are enforced once at the
// transport boundary, before any handler body runs.

// CreateCollectionPayload opens (or re-enters) a session for a lecture.
type CreateCollectionPayload struct {
	LectureID string `json:"lectureid" validate:"required,max=64"`
}

// ArrivalPayload is a student redeeming the broadcast token.
type ArrivalPayload struct {
	Token         string `json:"token" validate:"required"`
	StudentNumber string `json:"studentnumber" validate:"required,max=64"`
	LectureID     string `json:"lectureid" validate:"required,max=64"`
	UnixTimeMS    int64  `json:"unixtime" validate:"required"`
}

// ManualEditPayload covers teacher-driven insert and remove. StudentNumber
// is deliberately unconstrained beyond length so the empty-input case can
// be answered with its own outcome event rather than a validation error.
type ManualEditPayload struct {
	StudentNumber string `json:"studentnumber" validate:"max=64"`
	LectureID     string `json:"lectureid" validate:"required,max=64"`
}

// LectureActionPayload covers manual finalize and cancel.
type LectureActionPayload struct {
	LectureID string `json:"lectureid" validate:"required,max=64"`
}

// PongPayload is the client echo of a ping broadcast.
type PongPayload struct {
	LectureID  string `json:"lectureid" validate:"required,max=64"`
	UnixTimeMS int64  `json:"time"`
}
