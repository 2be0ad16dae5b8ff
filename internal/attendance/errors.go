package attendance

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes gateway errors.
type ErrorCode string

const (
	// ErrCodeBridgeSuspended indicates a status change while the bridge is off.
	ErrCodeBridgeSuspended ErrorCode = "BRIDGE_SUSPENDED"

	// ErrCodeOwnerOnly indicates an Owner-only operation by another role.
	ErrCodeOwnerOnly ErrorCode = "OWNER_ONLY"

	// ErrCodeNotFound indicates the referenced record does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeDuplicate indicates a uniqueness violation.
	ErrCodeDuplicate ErrorCode = "DUPLICATE"

	// ErrCodeRequired indicates a missing or blank field.
	ErrCodeRequired ErrorCode = "REQUIRED"

	// ErrCodeInvalid indicates a value outside its allowed set.
	ErrCodeInvalid ErrorCode = "INVALID"
)

// PolicyError is a permission denial. Its message is meant for the
// operator; nothing was committed.
type PolicyError struct {
	Code    ErrorCode
	Message string

	// Actor is the username that was denied, if known.
	Actor string
}

func (e *PolicyError) Error() string {
	if e.Actor != "" {
		return fmt.Sprintf("%s: %s (actor=%s)", e.Code, e.Message, e.Actor)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any PolicyError with the same code, so errors.Is works
// against the sentinels below.
func (e *PolicyError) Is(target error) bool {
	t, ok := target.(*PolicyError)
	return ok && t.Code == e.Code
}

var (
	// ErrBridgeSuspended denies worker status changes while the bridge is
	// inactive, for every role but Owner.
	ErrBridgeSuspended = &PolicyError{
		Code:    ErrCodeBridgeSuspended,
		Message: "the cloud bridge is currently suspended, action denied",
	}

	// ErrOwnerOnly denies operations reserved for the Owner.
	ErrOwnerOnly = &PolicyError{
		Code:    ErrCodeOwnerOnly,
		Message: "only the Owner can perform this action",
	}
)

func deny(sentinel *PolicyError, actor string) *PolicyError {
	return &PolicyError{Code: sentinel.Code, Message: sentinel.Message, Actor: actor}
}

// ValidationError reports input that cannot be committed.
type ValidationError struct {
	Code    ErrorCode
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(code ErrorCode, field, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFound(kind, id string) *ValidationError {
	return invalid(ErrCodeNotFound, "id", "%s %q not found", kind, id)
}

// IsPolicyError reports whether err is a permission denial.
// Uses errors.As to handle wrapped errors.
func IsPolicyError(err error) bool {
	var pe *PolicyError
	return errors.As(err, &pe)
}

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a validation failure for a missing record.
func IsNotFound(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code == ErrCodeNotFound
	}
	return false
}
