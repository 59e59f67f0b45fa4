package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to callers
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindDuplicateAccount   ErrorKind = "duplicate_account"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindTokenExpired       ErrorKind = "token_expired"
	KindTokenInvalid       ErrorKind = "token_invalid"
	KindNotConfigured      ErrorKind = "not_configured"
	KindForbidden          ErrorKind = "forbidden"
	KindNotFound           ErrorKind = "not_found"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindConflict           ErrorKind = "conflict"
	KindInternal           ErrorKind = "internal"
)

// Error is a classified service failure. Message is safe to show to clients.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NewValidationError(message string) *Error {
	return newError(KindValidation, message)
}

func NewDuplicateAccountError() *Error {
	return newError(KindDuplicateAccount, "An account with this email already exists")
}

// NewInvalidCredentialsError is the single answer to any failed password sign-in
func NewInvalidCredentialsError() *Error {
	return newError(KindInvalidCredentials, "Invalid email or password")
}

func NewTokenExpiredError() *Error {
	return newError(KindTokenExpired, "Token has expired, please request a new code")
}

func NewTokenInvalidError() *Error {
	return newError(KindTokenInvalid, "Invalid token, check the authentication configuration")
}

// NewNotConfiguredError names the environment variables an operator has to set
func NewNotConfiguredError(missing []string) *Error {
	return &Error{
		Kind:    KindNotConfigured,
		Message: "Service is not configured",
		Details: map[string]interface{}{"missing": missing},
	}
}

func NewForbiddenError(message string, details map[string]interface{}) *Error {
	return &Error{Kind: KindForbidden, Message: message, Details: details}
}

func NewNotFoundError(message string) *Error {
	return newError(KindNotFound, message)
}

func NewUnauthorizedError(message string) *Error {
	return newError(KindUnauthorized, message)
}

func NewConflictError(message string) *Error {
	return newError(KindConflict, message)
}

// NewInternalError hides err from clients while keeping it for logs
func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}
