package openbanking

import (
	"fmt"
)

// ConfigError reports a missing or invalid setting, detected before any network call.
type ConfigError struct {
	Provider string
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: invalid configuration for %s: %s", e.Provider, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Reason)
}

// AuthError means the provider rejected the credentials, either at the auth endpoint
// or with a second 401 after a renewal.
type AuthError struct {
	Provider string
	Status   int
	Err      error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("%s: authentication failed", e.Provider)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// InvalidRangeError reports an unusable date window.
type InvalidRangeError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range [%s, %s]: %s", e.From, e.To, e.Reason)
}

// HTTPError is a non-2xx provider response other than 401.
type HTTPError struct {
	Provider string
	Method   string
	URL      string
	Status   int
	Body     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: %s %s returned status %d: %s", e.Provider, e.Method, e.URL, e.Status, e.Body)
}
