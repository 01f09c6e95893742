// Package handlers exposes the REST surface of the chat backend and the
// websocket endpoint. REST handlers are transport-thin: they parse input,
// call the chat service or the realtime dispatcher, and translate service
// errors into the ErrorResponse envelope.
//
// Example error response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "forbidden",
//	  "message": "Access denied"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/services"
)

// Stable, machine-readable error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// statusFor maps a service error category to an HTTP status and code.
func statusFor(k services.Kind) (int, string) {
	switch k {
	case services.KindUnauthenticated:
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case services.KindMalformed:
		return http.StatusBadRequest, ErrCodeBadRequest
	case services.KindNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case services.KindForbidden:
		return http.StatusForbidden, ErrCodeForbidden
	case services.KindConflict:
		return http.StatusConflict, ErrCodeConflict
	case services.KindRateLimited:
		return http.StatusTooManyRequests, ErrCodeRateLimited
	case services.KindTransient:
		return http.StatusServiceUnavailable, ErrCodeUnavailable
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// failErr writes err as an ErrorResponse. Only the client-safe service
// message is exposed; the cause is logged for 5xx.
func failErr(c *gin.Context, err error) {
	status, code := statusFor(services.KindOf(err))
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	fail(c, status, code, services.PublicMessage(err, "Something went wrong"))
}
