package types

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	payloadValidator = validator.New()

	lectureIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidatePayload runs struct-tag validation on a decoded event payload.
func ValidatePayload(v interface{}) error {
	if err := payloadValidator.Struct(v); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

// IsValidLectureID checks the lecture id format shared by every event.
func IsValidLectureID(lectureID string) bool {
	if len(lectureID) < 1 || len(lectureID) > 64 {
		return false
	}
	return lectureIDRegex.MatchString(lectureID)
}

// IsPrivilegedRole reports whether a role may open, edit, finalize or
// cancel a session. Applied uniformly before any handler body executes.
func IsPrivilegedRole(role string) bool {
	switch role {
	case RoleTeacher, RoleAdmin, RoleCounselor:
		return true
	default:
		return false
	}
}
