package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/wpbryant/WordOps-Dashboard/interfaces"
)

// RequestError pairs an error with the HTTP status it should be reported as.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError builds a *RequestError from a formatted message.
func NewRequestError(status int, format string, args ...any) *RequestError {
	return &RequestError{StatusCode: status, Err: fmt.Errorf(format, args...)}
}

// StatusFor maps a domain error onto an HTTP status code.
//
// Upstream failures (missing binary, non-zero exit, timeouts, monitoring API
// errors and malformed upstream data) surface as 503 with the full detail.
func StatusFor(err error) int {
	var re *RequestError
	var pe *interfaces.ParseError
	switch {
	case errors.As(err, &re):
		return re.StatusCode
	case interfaces.IsValidation(err):
		return http.StatusBadRequest
	case interfaces.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrCommandNotFound),
		errors.Is(err, interfaces.ErrTimeout),
		errors.Is(err, interfaces.ErrMonitoringUnavailable),
		errors.As(err, &pe):
		return http.StatusServiceUnavailable
	}
	if _, ok := interfaces.AsCommandFailed(err); ok {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

// WriteError reports err as {"detail": ...}. Internal errors are logged and
// replaced by a generic message.
func WriteError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := StatusFor(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "err", err)
		detail = "Internal server error"
	} else if status >= http.StatusInternalServerError {
		log.Warn("Upstream failure", "err", err, "status", status)
	}
	WriteJSON(w, status, ErrorResponse{Detail: detail})
}

// DecodeJSON reads a JSON body of at most MaxBodySize into v. Unknown fields
// are rejected.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return NewRequestError(http.StatusRequestEntityTooLarge, "request body too large")
		}
		if errors.Is(err, io.EOF) {
			return NewRequestError(http.StatusBadRequest, "request body is empty")
		}
		return NewRequestError(http.StatusBadRequest, "invalid request body: %v", err)
	}
	return nil
}
