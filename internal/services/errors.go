package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid          ErrorCode = "invalid"
	ErrorForbidden        ErrorCode = "forbidden"
	ErrorNotFound         ErrorCode = "not_found"
	ErrorConflict         ErrorCode = "conflict"
	ErrorUnauthorized     ErrorCode = "unauthorized"
	ErrorDeadlineExpired  ErrorCode = "deadline_expired"
	ErrorAlreadySubmitted ErrorCode = "already_submitted"
)

// ServiceError is a typed, user-presentable outcome. Key, when set, names a
// translation entry the HTTP layer can localize Message with.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Key     string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewDeadlineExpiredError() error {
	return &ServiceError{Code: ErrorDeadlineExpired, Message: "the deadline for this form has passed", Key: "form.deadline_expired"}
}

func NewAlreadySubmittedError() error {
	return &ServiceError{Code: ErrorAlreadySubmitted, Message: "this form has already been submitted", Key: "form.already_submitted"}
}

func newKeyedError(code ErrorCode, key, msg string) error {
	return &ServiceError{Code: code, Message: msg, Key: key}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCode reports whether err is a ServiceError with the given code.
func IsCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}
