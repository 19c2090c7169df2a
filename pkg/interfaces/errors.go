package interfaces

import "errors"

// Cross-layer sentinel errors shared between the store, the collector and
// the transport gateway.
var (
	ErrAlreadyRecorded     = errors.New("attendance already recorded for this enrollment and lecture")
	ErrLectureNotFound     = errors.New("lecture not found")
	ErrStudentNotEnrolled  = errors.New("student not enrolled in lecture")
	ErrStoreClosed         = errors.New("attendance store is closed")
)
