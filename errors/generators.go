package errors

import "fmt"

// NewResourceNotFoundError returns a new ErrNotFound error with the given
// message.
func NewResourceNotFoundError(message string, details Details) error {
	return Error{
		Code:    ErrNotFound,
		Message: message,
		Details: details,
	}
}

// NewBadRequestErr returns a new ErrBadRequest error with the given message and
// original error.
func NewBadRequestErr(message string, err error, details Details) error {
	return Error{
		Code:    ErrBadRequest,
		Err:     err,
		Message: message,
		Details: details,
	}
}

// NewInternalError returns a new ErrInternal error with the given message.
func NewInternalError(message string, details Details) error {
	return Error{
		Code:    ErrInternal,
		Message: message,
		Details: details,
	}
}

// NewInternalErrorFromErr returns a new ErrInternal error with the given
// original error.
func NewInternalErrorFromErr(err error, message string, details Details) error {
	return Error{
		Code:    ErrInternal,
		Err:     err,
		Message: message,
		Details: details,
	}
}

// NewJSONDecodeError returns an ErrBadRequest error for JSON content that
// could not be decoded.
func NewJSONDecodeError(err error, what string) error {
	return Error{
		Code:    ErrBadRequest,
		Err:     err,
		Message: fmt.Sprintf("decode %s", what),
	}
}

// NewQueryToSQLError returns an ErrInternal error for failed query building.
func NewQueryToSQLError(err error, details Details) error {
	return Error{
		Code:    ErrInternal,
		Err:     err,
		Message: "query to sql",
		Details: details,
	}
}

// NewExecQueryError returns an ErrInternal error for a failed query
// execution. The query is added to the details.
func NewExecQueryError(err error, message string, query string) error {
	return Error{
		Code:    ErrInternal,
		Err:     err,
		Message: message,
		Details: Details{"query": query},
	}
}

// NewScanDBRowError returns an ErrInternal error for a row that could not be
// scanned.
func NewScanDBRowError(err error, message string, query string) error {
	return Error{
		Code:    ErrInternal,
		Err:     err,
		Message: message,
		Details: Details{"query": query},
	}
}

// NewDBTxBeginError returns an ErrInternal error for a transaction that could
// not be started.
func NewDBTxBeginError(err error) error {
	return Error{
		Code:    ErrInternal,
		Err:     err,
		Message: "begin tx",
	}
}

// NewDBTxCommitError returns an ErrInternal error for a transaction that could
// not be committed.
func NewDBTxCommitError(err error) error {
	return Error{
		Code:    ErrInternal,
		Err:     err,
		Message: "commit tx",
	}
}
