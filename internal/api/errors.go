package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrUnauthorized marks a 401 from the backend. The session has already
	// been torn down when it is returned.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNetwork marks a request that never got a response.
	ErrNetwork = errors.New("network error")
)

const networkMessage = "Network connection failed, please check your connection"

// Error is the single error shape feature code sees for transport failures.
// Payload holds the server's JSON error body unchanged.
type Error struct {
	Status  int
	Message string
	Payload map[string]any
	Body    []byte

	kind  error
	cause error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

// IsUnauthorized reports whether err came from a 401 response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || StatusOf(err) == http.StatusUnauthorized
}

// IsNetwork reports whether err is a connectivity failure or timeout.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func newHTTPError(resp *resty.Response) *Error {
	e := &Error{
		Status: resp.StatusCode(),
		Body:   resp.Body(),
	}
	var payload map[string]any
	if len(e.Body) > 0 && json.Unmarshal(e.Body, &payload) == nil {
		e.Payload = payload
	}
	e.Message = messageFrom(e.Payload, e.Body, e.Status)
	if e.Status == http.StatusUnauthorized {
		e.kind = ErrUnauthorized
	}
	return e
}

func newNetworkError(cause error) *Error {
	return &Error{
		Message: networkMessage,
		kind:    ErrNetwork,
		cause:   cause,
	}
}

func messageFrom(payload map[string]any, body []byte, status int) string {
	for _, key := range []string{"message", "detail", "error", "msg"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	if payload == nil {
		if text := strings.TrimSpace(string(body)); text != "" {
			return text
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}

// ValidationError rejects a call locally, before any network traffic.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
