package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrBadResponse marks a 2xx answer whose body could not be decoded.
var ErrBadResponse = errors.New("malformed response body")

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	StatusCode int
	// Detail is the decoded `detail` field of the error body, when present.
	Detail any
	Body   string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error"
	}
	msg := e.DetailString()
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if msg == "" {
		msg = "http error"
	}
	return fmt.Sprintf("http error: status=%d detail=%s", e.StatusCode, msg)
}

// DetailString renders Detail for log output, falling back to the raw body.
func (e *HTTPError) DetailString() string {
	if e == nil {
		return ""
	}
	switch d := e.Detail.(type) {
	case nil:
		return strings.TrimSpace(e.Body)
	case string:
		return d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Sprint(d)
		}
		return string(b)
	}
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPError) Retryable() bool {
	return e != nil && (e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500)
}

func parseHTTPError(status int, raw []byte) *HTTPError {
	herr := &HTTPError{StatusCode: status, Body: strings.TrimSpace(string(raw))}
	var env struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &env); err == nil {
		herr.Detail = env.Detail
	}
	return herr
}

// IsTransport reports whether err happened before any response was received.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var herr *HTTPError
	return !errors.As(err, &herr) && !errors.Is(err, ErrBadResponse)
}

// StatusCode extracts the HTTP status from err, or 0 for transport errors.
func StatusCode(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.StatusCode
	}
	return 0
}
