package dto

import (
	"net/http"

	"github.com/erp/invoicing/internal/domain/shared"
)

// Transport-level error codes. Domain failures keep the code of their DomainError.
const (
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeTokenExpired  = "TOKEN_EXPIRED"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeBodyTooLarge  = "REQUEST_TOO_LARGE"
)

// InternalErrorMessage replaces the text of infrastructure failures
const InternalErrorMessage = "An internal error occurred"

var kindStatus = map[shared.ErrorKind]int{
	shared.KindValidation:     http.StatusBadRequest,
	shared.KindNotFound:       http.StatusNotFound,
	shared.KindBusinessRule:   http.StatusUnprocessableEntity,
	shared.KindConcurrency:    http.StatusConflict,
	shared.KindInfrastructure: http.StatusInternalServerError,
}

// StatusForKind maps an error kind to its HTTP status; unknown kinds are 500
func StatusForKind(kind shared.ErrorKind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromError builds the status and error envelope for err. Infrastructure
// failures are reported as INTERNAL_ERROR with a generic message.
func FromError(err error, requestID string) (int, Response) {
	kind := shared.KindOf(err)
	status := StatusForKind(kind)
	if status == http.StatusInternalServerError {
		resp := NewErrorResponse(ErrCodeInternal, InternalErrorMessage, requestID)
		resp.Error.Kind = string(shared.KindInfrastructure)
		return status, resp
	}

	de := shared.AsDomainError(err)
	resp := NewErrorResponse(de.Code, de.Message, requestID)
	resp.Error.Kind = string(kind)
	resp.Error.Details = de.Details
	return status, resp
}
