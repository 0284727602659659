package lytex

import (
	"errors"
	"fmt"
	"net/http"
)

// GatewayError is a non-2xx (or failed) response from the payment gateway.
// StatusCode is 0 when the request never got a response.
type GatewayError struct {
	Operation  string
	StatusCode int
	Detail     string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("lytex %s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("lytex %s: status %d: %s", e.Operation, e.StatusCode, e.Detail)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// AuthError means the gateway rejected our credentials or token, after any retry.
type AuthError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("lytex auth: %s", e.Detail)
	}
	return fmt.Sprintf("lytex auth: status %d: %s", e.StatusCode, e.Detail)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a gateway 401 or 410 response.
func IsUnauthorized(err error) bool {
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return false
	}
	return gwErr.StatusCode == http.StatusUnauthorized || gwErr.StatusCode == http.StatusGone
}

// asAuthError converts a gateway rejection into an AuthError. Other errors pass through.
func asAuthError(err error) error {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.StatusCode >= 400 && gwErr.StatusCode < 500 {
		return &AuthError{StatusCode: gwErr.StatusCode, Detail: gwErr.Detail, Err: err}
	}
	return err
}
