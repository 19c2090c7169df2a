package ws

import "errors"

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrInvalidJSON      = errors.New("payload cannot be encoded as JSON")
	ErrWriteBufferFull  = errors.New("connection write buffer full")
)
