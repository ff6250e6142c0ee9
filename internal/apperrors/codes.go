// Package apperrors provides the typed failures shared by the identity
// service and the EcoTrack client.
package apperrors

import "net/http"

// Code is a machine-readable error code. It is also the wire value the
// identity service returns in the "code" field of an error body.
type Code string

const (
	// CodeUnknown represents an unclassified failure.
	CodeUnknown Code = "UNKNOWN"

	// Auth failures
	CodeInvalidCredentials       Code = "INVALID_CREDENTIALS"
	CodeInvalidCredentialsFormat Code = "INVALID_CREDENTIALS_FORMAT"
	CodeAccountNotFound          Code = "ACCOUNT_NOT_FOUND"
	CodeEmailAlreadyInUse        Code = "EMAIL_ALREADY_IN_USE"
	CodeWeakPassword             Code = "WEAK_PASSWORD"
	CodeRateLimited              Code = "RATE_LIMITED"
	CodeUserCancelled            Code = "USER_CANCELLED"
	CodeProviderError            Code = "PROVIDER_ERROR"
	CodeNotAuthenticated         Code = "NOT_AUTHENTICATED"

	// Remote data failures
	CodeNetwork  Code = "NETWORK"
	CodeNotFound Code = "NOT_FOUND"

	// CodeOperationPending rejects a second invocation of a mutator
	// while the first one is still in flight.
	CodeOperationPending Code = "OPERATION_PENDING"
)

// Category groups codes into the three failure families the client
// presents differently.
type Category string

const (
	CategoryAuth     Category = "auth"
	CategoryNetwork  Category = "network"
	CategoryNotFound Category = "not_found"
	CategoryInternal Category = "internal"
)

// Category reports the family the code belongs to.
func (c Code) Category() Category {
	switch c {
	case CodeInvalidCredentials, CodeInvalidCredentialsFormat, CodeAccountNotFound,
		CodeEmailAlreadyInUse, CodeWeakPassword, CodeRateLimited, CodeUserCancelled,
		CodeProviderError, CodeNotAuthenticated:
		return CategoryAuth
	case CodeNetwork:
		return CategoryNetwork
	case CodeNotFound:
		return CategoryNotFound
	default:
		return CategoryInternal
	}
}

// statusClientClosedRequest is the de facto status for a request the
// caller abandoned.
const statusClientClosedRequest = 499

// HTTPStatus maps the code to the status the identity service answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidCredentials, CodeNotAuthenticated:
		return http.StatusUnauthorized
	case CodeAccountNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeEmailAlreadyInUse, CodeOperationPending:
		return http.StatusConflict
	case CodeWeakPassword, CodeInvalidCredentialsFormat:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUserCancelled:
		return statusClientClosedRequest
	case CodeProviderError, CodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ParseCode returns the known code for a wire value, or CodeUnknown.
func ParseCode(raw string) Code {
	c := Code(raw)
	switch c {
	case CodeInvalidCredentials, CodeInvalidCredentialsFormat, CodeAccountNotFound,
		CodeEmailAlreadyInUse, CodeWeakPassword, CodeRateLimited, CodeUserCancelled,
		CodeProviderError, CodeNotAuthenticated, CodeNetwork, CodeNotFound,
		CodeOperationPending:
		return c
	default:
		return CodeUnknown
	}
}
