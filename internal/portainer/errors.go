package portainer

import (
	"encoding/json"
	"fmt"
)

// APIError is a non-2xx response from the Portainer API. Message and Details
// come from the standard Portainer error envelope when the body parses as one.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("portainer API returned HTTP %d: %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("portainer API returned HTTP %d", e.Status)
}

// newAPIError builds an APIError from a response status and body, parsing the
// Portainer error envelope when possible.
func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	var envelope struct {
		Message string `json:"message"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		e.Message = envelope.Message
		e.Details = envelope.Details
	} else {
		e.Details = truncate(string(body), 200)
	}
	return e
}

// AuthError means credentials were rejected or the auth endpoint was
// unreachable. Fatal for the run: nothing has been mutated yet.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
