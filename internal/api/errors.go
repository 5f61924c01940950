package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized    = errors.New("api: unauthorized")
	ErrNotFound        = errors.New("api: not found")
	ErrInvalidResponse = errors.New("api: invalid response payload")
)

// Error is a non-2xx backend answer. 5xx errors reach callers wrapped in a
// domain.NetworkError; 4xx errors are returned as is.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("api: %s: status %d: %s", e.Op, e.StatusCode, msg)
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// errorPayload accepts both {"error": ...} and {"message": ...} shapes.
type errorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Message extracts the backend's human readable message from err, falling
// back to fallback when err carries none.
func Message(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

func drainError(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
