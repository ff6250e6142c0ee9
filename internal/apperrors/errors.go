package apperrors

import "errors"

// Error is the typed failure with a code and an optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message, safe to show to the user
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Code)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a failure with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a failure that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidCredentials       = New(CodeInvalidCredentials, "invalid credentials")
	ErrInvalidCredentialsFormat = New(CodeInvalidCredentialsFormat, "invalid email or password format")
	ErrAccountNotFound          = New(CodeAccountNotFound, "account not found")
	ErrEmailAlreadyInUse        = New(CodeEmailAlreadyInUse, "email already in use")
	ErrWeakPassword             = New(CodeWeakPassword, "password is too weak")
	ErrRateLimited              = New(CodeRateLimited, "too many attempts, try again later")
	ErrUserCancelled            = New(CodeUserCancelled, "sign-in cancelled")
	ErrProviderError            = New(CodeProviderError, "identity provider error")
	ErrNotAuthenticated         = New(CodeNotAuthenticated, "not signed in")
	ErrNetwork                  = New(CodeNetwork, "network error")
	ErrNotFound                 = New(CodeNotFound, "not found")
	ErrOperationPending         = New(CodeOperationPending, "operation already in progress")
)

// CodeOf returns the code of the first *Error in the chain, or CodeUnknown.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// HTTPStatus returns the status code for err.
func HTTPStatus(err error) int {
	return CodeOf(err).HTTPStatus()
}

// PublicMessage returns a message safe for an HTTP body. Unknown errors
// never leak their text.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "internal error"
}
