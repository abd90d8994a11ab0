package errors

// Code classifies an Error. It decides how an error is logged and whether it
// is reported to the caller in detail.
type Code string

const (
	ErrAborted       Code = "aborted"
	ErrBadRequest    Code = "bad-request"
	ErrCommunication Code = "communication"
	ErrFatal         Code = "fatal"
	ErrNotFound      Code = "not-found"
	ErrInternal      Code = "internal"
	ErrUnexpected    Code = "unexpected"
)
