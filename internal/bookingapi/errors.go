package bookingapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoSession is returned when an authenticated call is made without a token.
	ErrNoSession = errors.New("bookingapi: no session token")
	// ErrEmptyResult is returned when a 2xx response carries no body where one is required.
	ErrEmptyResult = errors.New("bookingapi: empty response body")
)

// APIError is a non-2xx response from the booking backend.
type APIError struct {
	StatusCode int
	Message    string // server-supplied "message", verbatim; may be empty
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("booking api returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("booking api returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

type errorBody struct {
	Message string `json:"message"`
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Message = eb.Message
	}
	return apiErr
}

// ServerMessage returns the backend's message carried by err, or "" if there is none.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0 for transport failures.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
