package auth

import "errors"

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid or expired bearer token")
	ErrMissingClaims = errors.New("token missing required identity claims")
)
