package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Kind string

const (
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindConflict         Kind = "conflict"
	KindStorage          Kind = "storage_failure"
	KindConfiguration    Kind = "configuration"
)

// Error is the typed failure returned by every service operation. Code is
// stable and machine readable; errors.Is matches on it.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Retryable reports whether the same call may succeed later.
func (e *Error) Retryable() bool { return e.Kind == KindStorage }

var (
	ErrNotSubscribed           = &Error{Kind: KindValidation, Code: "not_subscribed", Message: "user is not subscribed to this activity"}
	ErrAlreadyConfirmed        = &Error{Kind: KindConflict, Code: "already_confirmed", Message: "presence already confirmed"}
	ErrAlreadySubscribed       = &Error{Kind: KindConflict, Code: "already_subscribed", Message: "user is already subscribed to this activity"}
	ErrAlreadyCompleted        = &Error{Kind: KindConflict, Code: "already_completed", Message: "activity is already completed"}
	ErrNotCreator              = &Error{Kind: KindPermissionDenied, Code: "not_creator", Message: "only the activity creator can do this"}
	ErrForbidden               = &Error{Kind: KindPermissionDenied, Code: "forbidden", Message: "not allowed to modify this resource"}
	ErrInvalidConfirmationCode = &Error{Kind: KindValidation, Code: "invalid_confirmation_code", Message: "confirmation code does not match"}
	ErrActivityNotFound        = &Error{Kind: KindNotFound, Code: "activity_not_found", Message: "activity not found"}
	ErrUserNotFound            = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "user not found"}
	ErrParticipantNotFound     = &Error{Kind: KindNotFound, Code: "participant_not_found", Message: "participant not found"}
	ErrInvalidCredentials      = &Error{Kind: KindValidation, Code: "invalid_credentials", Message: "invalid email or password"}
	ErrEmailTaken              = &Error{Kind: KindConflict, Code: "email_taken", Message: "email is already registered"}
	ErrUnknownActivityType     = &Error{Kind: KindValidation, Code: "unknown_activity_type", Message: "activity type does not exist"}
	ErrUnknownAchievement      = &Error{Kind: KindConfiguration, Code: "unknown_achievement", Message: "achievement is not in the catalog"}
)

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_input", Message: fmt.Sprintf(format, args...)}
}

func storageError(op string, err error) *Error {
	return &Error{Kind: KindStorage, Code: "storage_failure", Message: op, Err: err}
}

// KindOf classifies any error; untyped errors are storage failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// classify turns a raw gorm error into a typed one. notFound is returned for
// gorm.ErrRecordNotFound; unique violations become conflicts.
func classify(op string, err error, notFound *Error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if notFound != nil && errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if isUniqueViolation(err) {
		return &Error{Kind: KindConflict, Code: "duplicate", Message: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: KindStorage, Code: "storage_timeout", Message: op, Err: err}
	}
	return storageError(op, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
