package roster

import "errors"

var (
	ErrAlreadyPresent = errors.New("student already in present partition")
	ErrNotInRoster    = errors.New("student not found in expected partition")
)
