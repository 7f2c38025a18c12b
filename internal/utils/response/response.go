// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every store handler answers in JSON. Setting the header, writing the
// status and encoding the body happen here once instead of in each
// handler.
//
// Error responses always carry a "message" field. Store clients display
// that field verbatim, so it must be a human-readable sentence.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ─────────────────────────────────────────────────────────────────────────────
// Response is the standard envelope returned for error cases.
//
// Success responses return the record or list itself. Errors look like:
//
//	{ "status": "error", "message": "field name is required" }
//
// ─────────────────────────────────────────────────────────────────────────────
type Response struct {
	Status  string `json:"status"`  // "ok" or "error"
	Message string `json:"message"` // shown to the admin user as is
}

// Status values for Response.Status.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// ─────────────────────────────────────────────────────────────────────────────
// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
// ─────────────────────────────────────────────────────────────────────────────
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")

	// The status line has to go out before any body bytes.
	w.WriteHeader(status)

	// Encode streams straight into w and appends a trailing newline.
	return json.NewEncoder(w).Encode(data)
}

// ─────────────────────────────────────────────────────────────────────────────
// GeneralError wraps any Go error into our standard Response shape.
//
// Example usage:
//
//	response.WriteJSON(w, http.StatusNotFound,
//	    response.GeneralError(err))
//
// ─────────────────────────────────────────────────────────────────────────────
func GeneralError(err error) Response {
	return Response{
		Status:  StatusError,
		Message: err.Error(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ValidationError converts a slice of validator.FieldError values into
// a single human-readable Response.
//
// The validator reports one FieldError per failing field. Field names are
// the JSON keys (see the tag name func in the student handlers), so the
// message names fields the way the client sent them.
//
//	{ "status": "error", "message": "field name is required, field username is required" }
//
// ─────────────────────────────────────────────────────────────────────────────
func ValidationError(errs validator.ValidationErrors) Response {
	var errMessages []string

	for _, e := range errs {
		switch e.ActualTag() {
		// "required": missing or zero-valued
		case "required":
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is required", e.Field()))
		// anything else (min, max, len, ...)
		default:
			errMessages = append(errMessages,
				fmt.Sprintf("field %s is invalid", e.Field()))
		}
	}

	return Response{
		Status:  StatusError,
		Message: strings.Join(errMessages, ", "),
	}
}
