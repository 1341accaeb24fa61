// Package httpx provides JSON and RFC7807 problem responses.
package httpx

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors handlers translate domain failures into.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrUpstream     = errors.New("upstream data source failed")
	ErrInconsistent = errors.New("inconsistent result")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// RespondError maps errors to HTTP responses using RFC7807. Only validation
// and not-found details are echoed to the client.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrRateLimited):
		Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
	case errors.Is(err, ErrUpstream):
		Problem(w, http.StatusBadGateway, "Upstream Failure", "")
	case errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusGatewayTimeout, "Timeout", "")
	case errors.Is(err, context.Canceled):
		Problem(w, StatusClientClosedRequest, "Request Cancelled", "")
	case errors.Is(err, ErrInconsistent):
		Problem(w, http.StatusInternalServerError, "Inconsistent Result", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// StatusClientClosedRequest is the non-standard status recorded when the
// client goes away before the response is ready.
const StatusClientClosedRequest = 499
