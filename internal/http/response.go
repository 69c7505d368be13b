package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"gastos/internal/core"
	"gastos/internal/log"
	"gastos/internal/middleware/trace"
)

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes v with status. Encoding failures can only be logged
// because the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", log.FieldError, err)
	}
}

// statusFor maps an error to its HTTP status, a stable code and the log
// category used when reporting it.
// statusClientClosedRequest is the nginx convention for a client that went
// away before the response was ready.
const statusClientClosedRequest = 499

func statusFor(err error) (status int, code, errorType string) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found", log.ErrorTypeNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrNegativeAmount),
		errors.Is(err, core.ErrInvalidUserID),
		errors.Is(err, core.ErrEmptyID),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidPreferences):
		return http.StatusBadRequest, "invalid_request", log.ErrorTypeValidation
	case errors.Is(err, core.ErrExportUnavailable):
		return http.StatusNotImplemented, "not_supported", log.ErrorTypeConfiguration
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "client_closed_request", log.ErrorTypeNetwork
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", log.ErrorTypeTimeout
	case errors.Is(err, core.ErrUpstream):
		return http.StatusBadGateway, "upstream_unavailable", log.ErrorTypeNetwork
	}
	return http.StatusInternalServerError, "internal", log.ErrorTypeInternal
}

// writeError logs err and answers with its mapped status. Server-side
// failures hide their detail from the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	status, code, errorType := statusFor(err)

	fields := log.NewFields().WithOperation(op).WithError(err).WithErrorType(errorType)
	fields[log.FieldStatusCode] = status
	logger := log.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "Request failed", fields.ToSlice()...)
	} else {
		logger.WarnContext(ctx, "Request rejected", fields.ToSlice()...)
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, r, status, ErrorResponse{
		Error:     msg,
		Code:      code,
		RequestID: trace.GetRequestID(ctx),
	})
}
