package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrUnbalanced is returned by posting when, for some currency, debits and credits differ.
var ErrUnbalanced = errors.New("transaction is unbalanced")

// ErrImmutable is returned for any attempt to change posted data.
var ErrImmutable = errors.New("record is immutable")

// ErrConflict signals a concurrent modification that lost the race.
var ErrConflict = errors.New("conflict")

// ErrInactiveAccount is returned when an entry targets a deactivated account.
var ErrInactiveAccount = errors.New("account is inactive")

// ErrAlreadyReversed is returned when an entry already has a reversal.
var ErrAlreadyReversed = errors.New("entry already reversed")

// ErrNotPosted is returned when reversing an entry whose transaction is still a draft.
var ErrNotPosted = errors.New("transaction not posted")

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInternal     = errors.New("internal error")
)

// AppError carries a machine readable code and a client safe message
// alongside the wrapped cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds an AppError. err may be nil.
func NewAppError(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NewValidationError(message string) *AppError {
	return NewAppError("VALIDATION_ERROR", message, ErrValidation)
}

func NewNotFoundError(message string) *AppError {
	return NewAppError("NOT_FOUND", message, ErrNotFound)
}

func NewConflictError(message string) *AppError {
	return NewAppError("CONFLICT", message, ErrConflict)
}

func NewInternalServerError(message string, err error) *AppError {
	if err == nil {
		err = ErrInternal
	}
	return NewAppError("INTERNAL_ERROR", message, err)
}

// Code returns the stable error code for err, used in API responses.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrUnbalanced):
		return "UNBALANCED"
	case errors.Is(err, ErrImmutable):
		return "IMMUTABLE"
	case errors.Is(err, ErrAlreadyReversed):
		return "ALREADY_REVERSED"
	case errors.Is(err, ErrNotPosted):
		return "NOT_POSTED"
	case errors.Is(err, ErrInactiveAccount):
		return "INACTIVE_ACCOUNT"
	case errors.Is(err, ErrConflict), errors.Is(err, ErrDuplicate):
		return "CONFLICT"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	}
	return "INTERNAL_ERROR"
}
