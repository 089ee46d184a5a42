// Package errors holds the platform's error sentinels, the AppError carrier
// used at HTTP boundaries, and re-exports of github.com/cockroachdb/errors for
// stack-carrying wrapping inside the store and identity layers.
package errors

import (
	"fmt"
	"net/http"
	"strings"

	crdb "github.com/cockroachdb/errors"
)

var (
	New   = crdb.New
	Wrap  = crdb.Wrap
	Wrapf = crdb.Wrapf
	Is    = crdb.Is
	As    = crdb.As
)

var (
	ErrNotFound         = New("not found")
	ErrInvalidInput     = New("invalid input")
	ErrDuplicate        = New("duplicate key")
	ErrStale            = New("document changed concurrently")
	ErrIdentityConflict = New("identity conflict")
	ErrMissingData      = New("missing required data")
	ErrUnauthorized     = New("unauthorized")
	ErrRateLimited      = New("rate limit exceeded")
	ErrTimeout          = New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewApp(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func NewAppf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// MissingDataError names the fields a precondition needed but did not find.
type MissingDataError struct {
	DocumentID string
	Fields     []string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("document %s is missing %s", e.DocumentID, strings.Join(e.Fields, ", "))
}

func (e *MissingDataError) Unwrap() error {
	return ErrMissingData
}

// MissingData builds a MissingDataError for the given document and fields.
func MissingData(documentID string, fields ...string) error {
	return &MissingDataError{DocumentID: documentID, Fields: fields}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case Is(err, ErrNotFound):
		return http.StatusNotFound
	case Is(err, ErrIdentityConflict), Is(err, ErrDuplicate):
		return http.StatusConflict
	case Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case Is(err, ErrMissingData):
		return http.StatusUnprocessableEntity
	case Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
