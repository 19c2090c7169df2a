package types

import "errors"

var (
	ErrInvalidPayload   = errors.New("missing or malformed event payload")
	ErrInvalidLectureID = errors.New("lecture ID must be 1-64 characters, alphanumeric + underscore/hyphen only")
)
