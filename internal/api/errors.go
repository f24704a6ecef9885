package api

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped to distinct user-facing outcomes.
var (
	// ErrSessionExpired means the access token was rejected and could not be
	// refreshed. The caller must drop its tokens and re-authenticate.
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidCredentials is returned by Login for any rejected credential pair.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken is returned by Register when the email is already in use.
	ErrEmailTaken = errors.New("email already registered")

	// ErrRegisterPayload is returned by Register when the service rejects the
	// registration payload as malformed.
	ErrRegisterPayload = errors.New("invalid registration payload")
)

// StatusError is any other non-2xx response from the expense service.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}
